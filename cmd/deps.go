package cmd

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	appdownload "media-harvest/application/download"
	"media-harvest/application/fetchchain"
	"media-harvest/application/harvest"
	"media-harvest/application/pagination"
	"media-harvest/domain/download"
	"media-harvest/domain/feed"
	"media-harvest/domain/ledger"
	"media-harvest/infrastructure/bbdown"
	"media-harvest/infrastructure/bilibili"
	"media-harvest/infrastructure/config"
	"media-harvest/infrastructure/ffmpeg"
	"media-harvest/infrastructure/filesystem"
	"media-harvest/infrastructure/ledgerstore"
	"media-harvest/infrastructure/logger"
	"media-harvest/infrastructure/nitter"
	"media-harvest/infrastructure/supadata"
	"media-harvest/infrastructure/whisper"
	"media-harvest/infrastructure/youtubeapi"
	"media-harvest/infrastructure/ytdlp"
)

// Production wiring shared by the harvest commands

func newHarvestService(cfg *config.Config, logs *logger.Manager, out OutputWriter) *harvest.Service {
	ledgerLog := logs.Get("ledger")
	openLedger := func(dir string) ledger.Store {
		return ledgerstore.ForDirectory(dir, ledgerLog, ledgerstore.WithResetCorrupt(resetCorruptLedger))
	}
	return harvest.NewService(cfg.Output.Directory, openLedger, logs.Get("harvest"), out,
		harvest.WithPagination(
			pagination.WithMaxPages(cfg.Pagination.MaxPages),
			pagination.WithDelays(cfg.Pagination.PageDelay, cfg.Pagination.Backoff),
		))
}

func newYtdlpClient(cfg *config.Config) *ytdlp.Client {
	return ytdlp.NewClient(
		ytdlp.WithExecutable(cfg.Download.YtdlpPath),
		ytdlp.WithProxy(cfg.Download.Proxy),
		ytdlp.WithTimeout(cfg.Download.Timeout),
	)
}

// newAudioFallback returns the chain option that downloads with tools in order
// and transcribes locally
func newAudioFallback(cfg *config.Config, logs *logger.Manager, tools ...download.Tool) fetchchain.Option {
	downloader := appdownload.NewFallback(filesystem.NewWorkspace(), filepath.Join(cfg.WorkDir(), "attempts"), logs.Get("download"),
		appdownload.WithValidator(download.NewValidator(cfg.Download.MinCandidateBytes)))
	converter := ffmpeg.NewConverter(ffmpeg.WithFFmpegPath(cfg.Download.FFmpegPath))
	transcriber := whisper.NewTranscriber(cfg.Whisper.Model,
		whisper.WithBinary(cfg.Whisper.Binary),
		whisper.WithThreads(cfg.Whisper.Threads))
	return fetchchain.WithAudioFallback(downloader, tools, converter, transcriber)
}

// newYouTubeFetcher builds transcript API -> subtitles -> yt-dlp audio
func newYouTubeFetcher(cfg *config.Config, logs *logger.Manager) *fetchchain.Chain {
	client := newYtdlpClient(cfg)
	opts := []fetchchain.Option{
		fetchchain.WithFallbackTranscript(ytdlp.NewSubtitleProvider(client, filepath.Join(cfg.WorkDir(), "subtitles"))),
		newAudioFallback(cfg, logs, ytdlp.NewTool(client)),
		fetchchain.WithLanguage(cfg.Whisper.Language),
		fetchchain.WithKeepAudio(cfg.Output.KeepAudio),
	}
	if len(cfg.Supadata.APIKeys) > 0 {
		provider := supadata.NewProvider(cfg.Supadata.APIKeys, logs.Get("supadata"),
			supadata.WithBaseURL(cfg.Supadata.BaseURL),
			supadata.WithStrategy(cfg.Supadata.KeyStrategy),
			supadata.WithSingleKey(cfg.Supadata.SingleKey),
			supadata.WithRateLimit(cfg.Supadata.RequestsPerSecond),
			supadata.WithHTTPClient(&http.Client{Timeout: cfg.Supadata.Timeout}))
		opts = append(opts, fetchchain.WithPrimaryTranscript(provider))
	} else {
		logs.Get("supadata").Emit(logger.INFO, "no transcript API keys configured; add one with: %s", config.SuggestAddKeyCommand())
	}
	return fetchchain.New(cfg.WorkDir(), logs.Get("chain"), opts...)
}

// newBilibiliFetcher builds BBDown -> yt-dlp audio; Bilibili has no transcript providers
func newBilibiliFetcher(cfg *config.Config, logs *logger.Manager) *fetchchain.Chain {
	tools := []download.Tool{
		bbdown.NewTool(bbdown.WithExecutable(cfg.Download.BBDownPath), bbdown.WithTimeout(cfg.Download.Timeout)),
		ytdlp.NewTool(newYtdlpClient(cfg)),
	}
	return fetchchain.New(cfg.WorkDir(), logs.Get("chain"),
		newAudioFallback(cfg, logs, tools...),
		fetchchain.WithLanguage(cfg.Whisper.Language),
		fetchchain.WithKeepAudio(cfg.Output.KeepAudio))
}

func newChannelLister(ctx context.Context, cfg *config.Config) (harvest.ChannelLister, error) {
	switch cfg.YouTube.Lister {
	case "", "ytdlp":
		return ytdlp.NewLister(newYtdlpClient(cfg)), nil
	case "api":
		lister, err := youtubeapi.NewLister(ctx, cfg.YouTube.APIKey, cfg.YouTube.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return lister, nil
	default:
		return nil, fmt.Errorf("unknown youtube.lister %q (use ytdlp or api)", cfg.YouTube.Lister)
	}
}

func newSpaceLister(cfg *config.Config, logs *logger.Manager) *bilibili.Client {
	return bilibili.NewClient(logs.Get("bilibili"),
		bilibili.WithBaseURL(cfg.Bilibili.APIBase),
		bilibili.WithRateLimit(cfg.Bilibili.RequestsPerSecond),
		bilibili.WithHTTPClient(&http.Client{Timeout: cfg.Bilibili.Timeout}))
}

func newNitterSource(cfg *config.Config, kinds feed.TweetKinds, logs *logger.Manager) func(string) feed.Source {
	return func(username string) feed.Source {
		return nitter.NewFeed(cfg.Nitter.URL, username, logs.Get("nitter"),
			nitter.WithRetweets(kinds.Retweets),
			nitter.WithReplies(kinds.Replies),
			nitter.WithRateLimit(cfg.Nitter.RequestsPerSecond),
			nitter.WithHTTPClient(&http.Client{Timeout: cfg.Nitter.Timeout}))
	}
}
