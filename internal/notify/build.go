package notify

import (
	"io"

	"github.com/rs/zerolog"

	"worldclock-fx/internal/config"
)

// Channels is the wired notification set. Banner and Audio are always built:
// the board reads the banner and the alarm chimes through Audio even when
// neither is an alert channel.
type Channels struct {
	FanOut *FanOut
	Banner *Banner
	Audio  *Audio
}

// Build wires the channels named in cfg.Notify.Channels, in order. out
// receives banner text when the board is off, and the terminal bell.
func Build(cfg *config.Config, out io.Writer, logger zerolog.Logger) Channels {
	var bannerOut io.Writer
	if !cfg.Display.Enabled {
		bannerOut = out
	}
	banner := NewBanner(bannerOut, DefaultBannerKeep, cfg.Display.Color)
	audio := NewAudio(out, cfg.Notify.AudioGap)

	notifiers := make([]Notifier, 0, len(cfg.Notify.Channels))
	for _, name := range cfg.Notify.Channels {
		switch name {
		case "banner":
			notifiers = append(notifiers, banner)
		case "audio":
			notifiers = append(notifiers, audio)
		case "desktop":
			notifiers = append(notifiers, NewDesktop())
		case "maildraft":
			notifiers = append(notifiers, NewMailDraft(cfg.Notify.DraftDir, cfg.Notify.MailTo, logger))
		case "telegram":
			tg := cfg.Notify.Telegram
			notifiers = append(notifiers, NewTelegram(tg.BotToken, tg.ChatID, tg.APIBase, cfg.Notify.Timeout, logger))
		case "webhook":
			wh := cfg.Notify.Webhook
			notifiers = append(notifiers, NewWebhook(wh.URL, wh.Secret, cfg.Provider.UserAgent, cfg.Notify.Timeout))
		default:
			logger.Warn().Str("channel", name).Msg("unknown notification channel ignored")
		}
	}

	return Channels{
		FanOut: NewFanOut(cfg.Notify.Timeout, logger, notifiers...),
		Banner: banner,
		Audio:  audio,
	}
}
