package podio

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/mikey/makerlab-autoreply/internal/config"
	"github.com/mikey/makerlab-autoreply/internal/core"
	"github.com/mikey/makerlab-autoreply/internal/utils"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Source pages through the email app and yields inbound messages lazily
type Source struct {
	client        *Client
	appID         int64
	pageSize      int
	location      *time.Location
	itemURLFormat string
	maxBodyChars  int
	text          *utils.TextProcessor
	pageThrottle  core.Throttle
	logger        *zap.Logger
}

// NewSource creates a new message source over the configured app
func NewSource(
	client *Client,
	cfg config.PodioConfig,
	maxBodyChars int,
	text *utils.TextProcessor,
	pageThrottle core.Throttle,
	logger *zap.Logger,
) *Source {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 30
	}
	return &Source{
		client:        client,
		appID:         cfg.AppID,
		pageSize:      pageSize,
		location:      cfg.Location,
		itemURLFormat: cfg.ItemURLFormat,
		maxBodyChars:  maxBodyChars,
		text:          text,
		pageThrottle:  pageThrottle,
		logger:        logger,
	}
}

// Messages yields items created at or after since, newest first. Paging
// stops at the first older item, an empty page, or the reported total.
func (s *Source) Messages(ctx context.Context, since time.Time) iter.Seq2[*core.InboundMessage, error] {
	return func(yield func(*core.InboundMessage, error) bool) {
		offset := 0
		for {
			page, err := s.client.FilterItems(ctx, s.appID, s.pageSize, offset)
			if err != nil {
				yield(nil, fmt.Errorf("failed to fetch items at offset %d: %w", offset, err))
				return
			}
			if offset == 0 {
				s.logger.Info("Listing workspace items", zap.Int64("total", page.Total))
			}
			if len(page.Items) == 0 {
				return
			}

			for _, item := range page.Items {
				created, err := ParseTimestamp(item.Get("created_on").String(), s.location)
				if err != nil {
					s.logger.Debug("Skipping item with unparsable timestamp",
						zap.Int64("item_id", item.Get("item_id").Int()),
						zap.Error(err))
					continue
				}
				if created.Before(since) {
					return
				}
				if !yield(s.toMessage(item, created), nil) {
					return
				}
			}

			offset += s.pageSize
			if int64(offset) >= page.Total {
				return
			}
			if err := s.pageThrottle.Wait(ctx); err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

func (s *Source) toMessage(item gjson.Result, created time.Time) *core.InboundMessage {
	itemID := item.Get("item_id").Int()
	msg := &core.InboundMessage{
		ItemID:    itemID,
		FromName:  FieldValue(item, FieldFrom),
		FromEmail: SenderEmail(item),
		Subject:   FieldValue(item, FieldSubject),
		Body:      s.text.ProcessText(FieldValue(item, FieldBody), s.maxBodyChars),
		Status:    FieldValue(item, FieldStatus),
		CreatedAt: created,
	}
	if s.itemURLFormat != "" {
		msg.URL = fmt.Sprintf(s.itemURLFormat, itemID)
	}
	return msg
}
