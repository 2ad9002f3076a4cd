// Package discord wires the Lavalink client into a Discord session:
// slash commands for playback control and forwarding of the gateway
// voice signals the node needs to take over audio.
package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/keshon/lavalink"
	"github.com/keshon/lavalink/internal/config"
	"github.com/keshon/lavalink/internal/storage"
)

type Bot struct {
	dg    *discordgo.Session
	cfg   *config.Config
	log   *zap.Logger
	store *storage.Storage

	client *lavalink.Client
	node   *lavalink.Node
}

func NewBot(cfg *config.Config, store *storage.Storage, log *zap.Logger) *Bot {
	return &Bot{
		cfg:    cfg,
		log:    log.Named("bot"),
		store:  store,
		client: lavalink.New(lavalink.WithLogger(log)),
	}
}

// Run opens the Discord session, connects the audio node and blocks
// until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	b.dg = dg

	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onInteractionCreate)
	dg.AddHandler(b.onVoiceStateUpdate)
	dg.AddHandler(b.onVoiceServerUpdate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("open Discord session: %w", err)
	}
	defer dg.Close()

	b.node = b.client.AddNode(lavalink.NodeConfig{
		Name:     b.cfg.LavalinkName,
		Host:     b.cfg.LavalinkHost,
		Port:     b.cfg.LavalinkPort,
		Password: b.cfg.LavalinkPassword,
		Secure:   b.cfg.LavalinkSecure,
		UserID:   dg.State.User.ID,
	})
	defer b.client.Close()

	b.registerNodeListeners()
	b.node.Connect(ctx)

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := b.node.WaitForConnection(connectCtx); err != nil {
		return fmt.Errorf("connect to audio node: %w", err)
	}
	b.log.Info("audio node connected", zap.String("session_id", b.node.SessionID()))

	<-ctx.Done()
	b.log.Info("shutdown signal received, cleaning up")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("Discord session ready",
		zap.String("username", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))

	if err := b.registerCommands(); err != nil {
		b.log.Error("slash command registration failed", zap.Error(err))
	}
}

// registerNodeListeners subscribes to node events for announcements
// and history bookkeeping.
func (b *Bot) registerNodeListeners() {
	lavalink.Listen(b.node, func(ev lavalink.TrackStartEvent) {
		b.log.Info("track started",
			zap.String("guild_id", ev.GuildID),
			zap.String("title", ev.Track.Info.Title))

		err := b.store.AppendTrackToHistory(ev.GuildID, storage.PlayedTrack{
			Title:     ev.Track.Info.Title,
			URI:       ev.Track.Info.URI,
			Requester: ev.Track.Requester,
			PlayedAt:  time.Now(),
		})
		if err != nil {
			b.log.Warn("failed to record track history", zap.Error(err))
		}
	})

	lavalink.Listen(b.node, func(ev lavalink.TrackExceptionEvent) {
		b.log.Warn("track failed on node",
			zap.String("guild_id", ev.GuildID),
			zap.String("title", ev.Track.Info.Title),
			zap.String("reason", ev.Exception.Message))
	})

	lavalink.Listen(b.node, func(ev lavalink.WebSocketClosedEvent) {
		b.log.Warn("voice connection closed on node side",
			zap.String("guild_id", ev.GuildID),
			zap.Int("code", ev.Code),
			zap.String("reason", ev.Reason))
	})
}

func (b *Bot) registerCommands() error {
	appID := b.dg.State.User.ID
	_, err := b.dg.ApplicationCommandCreate(appID, "", musicCommandDefinition())
	if err != nil {
		return fmt.Errorf("create music command: %w", err)
	}
	return nil
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.ApplicationCommandData().Name != "music" {
		return
	}
	if err := b.handleMusicCommand(s, i); err != nil {
		b.log.Error("music command failed",
			zap.String("guild_id", i.GuildID),
			zap.Error(err))
	}
}
