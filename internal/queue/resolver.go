package queue

import "github.com/hparsa/relaycast/internal/core/domain"

// Resolve turns a content kind and a feed's routing table into concrete
// delivery targets, snapshotting each matched channel by value.
//
// Image and video kinds use their dedicated routing list, falling back to
// the general list when that list is empty; text always uses general.
// Routing ids with no matching channel are skipped silently. The result may
// be empty — the caller decides not to enqueue and reports a warning.
func Resolve(kind domain.ContentKind, routing domain.FeedRouting, channels []domain.Channel) []domain.QueueTarget {
	ids := routing.General

	switch kind {
	case domain.ContentImage:
		if len(routing.Images) > 0 {
			ids = routing.Images
		}
	case domain.ContentVideo:
		if len(routing.Videos) > 0 {
			ids = routing.Videos
		}
	case domain.ContentText:
	}

	byID := make(map[string]domain.Channel, len(channels))
	for _, ch := range channels {
		byID[ch.ID] = ch
	}

	targets := make([]domain.QueueTarget, 0, len(ids))

	for _, id := range ids {
		ch, ok := byID[id]
		if !ok {
			continue
		}

		targets = append(targets, domain.QueueTarget{
			Platform:        ch.Platform,
			ChatAddress:     ch.ChatAddress,
			Credential:      ch.Credential,
			CaptionTemplate: ch.CaptionTemplate,
		})
	}

	return targets
}
