package helpers

import (
	"bytes"
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/sdbot/core/logger"
	"github.com/m3rciful/sdbot/core/telegram/sender"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, logger.CompTGSender, "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return sendAsync(c, "send.text", "sendMessage", func() error {
		if markup != nil {
			return c.Send(text, markup)
		}
		return c.Send(text)
	})
}

// EditText replaces the text and keyboard of the message a callback came
// from. Without a callback message it sends a new message instead.
func EditText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	if c.Callback() == nil || c.Callback().Message == nil {
		return SendText(c, text, markup)
	}
	return sendAsync(c, "edit.text", "editMessageText", func() error {
		err := c.Edit(text, markup)
		if errors.Is(err, tele.ErrSameMessageContent) {
			return nil
		}
		return err
	})
}

// SendPhoto uploads an image with a caption. When Telegram rejects the photo
// (size or dimension limits) the same bytes are sent as a document named
// filename so the user still receives the file.
func SendPhoto(c tele.Context, data []byte, caption, filename string) error {
	return sendAsync(c, "send.photo", "sendPhoto", func() error {
		photo := &tele.Photo{File: tele.FromReader(bytes.NewReader(data)), Caption: caption}
		err := c.Send(photo)
		if err == nil || !isPhotoRejected(err) {
			return err
		}
		logger.Warn(BuildContext(c), logger.CompTGSender, "send.photo.fallback",
			slog.String("status", "retry"),
			slog.String("err", logger.SanitizeLimit(logger.RedactToken(err.Error()), 256)),
		)
		doc := &tele.Document{
			File:     tele.FromReader(bytes.NewReader(data)),
			FileName: filename,
			Caption:  caption,
		}
		return c.Send(doc)
	})
}

func isPhotoRejected(err error) bool {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 400 || apiErr.Code == 413
	}
	return errors.Is(err, tele.ErrTooLarge)
}
