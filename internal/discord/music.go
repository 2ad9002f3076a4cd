package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/keshon/lavalink"
)

const commandTimeout = 15 * time.Second

func musicCommandDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "music",
		Description: "Control music playback",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Play a track or add it to the queue",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "input",
						Description: "Link or search query",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "source",
						Description: "Search source when a query is used",
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "YouTube", Value: "youtube"},
							{Name: "YouTube Music", Value: "youtube-music"},
							{Name: "SoundCloud", Value: "soundcloud"},
						},
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "Stop playback and clear the queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "pause",
				Description: "Pause playback",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "resume",
				Description: "Resume playback",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "volume",
				Description: "Set playback volume",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "level",
						Description: "Volume from 0 to 1000, 100 is normal",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "queue",
				Description: "Show the queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "history",
				Description: "Show recently played tracks",
			},
		},
	}
}

func (b *Bot) handleMusicCommand(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return respondText(s, i, "Missing subcommand.")
	}
	sub := data.Options[0]

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch sub.Name {
	case "play":
		return b.runPlay(ctx, s, i, sub)
	case "skip":
		return b.runSkip(ctx, s, i)
	case "stop":
		return b.runStop(ctx, s, i)
	case "pause":
		return b.runPause(ctx, s, i, true)
	case "resume":
		return b.runPause(ctx, s, i, false)
	case "volume":
		return b.runVolume(ctx, s, i, sub)
	case "queue":
		return b.runQueue(s, i)
	case "history":
		return b.runHistory(s, i)
	default:
		return respondText(s, i, fmt.Sprintf("Unknown subcommand: %s", sub.Name))
	}
}

func (b *Bot) runPlay(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	var input, source string
	for _, opt := range sub.Options {
		switch opt.Name {
		case "input":
			input = opt.StringValue()
		case "source":
			source = opt.StringValue()
		}
	}
	if input == "" {
		return respondText(s, i, "Input is required.")
	}

	if err := deferResponse(s, i); err != nil {
		return err
	}

	channelID, err := b.findUserVoiceChannel(i.GuildID, i.Member.User.ID)
	if err != nil {
		return followupText(s, i, fmt.Sprintf("Join a voice channel first: %v", err))
	}

	result, err := b.search(ctx, input, source)
	if err != nil {
		var loadErr *lavalink.TrackLoadError
		if errors.As(err, &loadErr) {
			return followupText(s, i, fmt.Sprintf("The node could not load that: %s", loadErr.Message))
		}
		return followupText(s, i, fmt.Sprintf("Search failed: %v", err))
	}
	if result.IsEmpty() {
		return followupText(s, i, "Nothing found.")
	}

	if err := b.joinVoiceChannel(i.GuildID, channelID); err != nil {
		return followupText(s, i, fmt.Sprintf("Could not join voice channel: %v", err))
	}

	player := b.node.CreatePlayer(i.GuildID)
	b.applyStoredSettings(ctx, player)
	requester := i.Member.User.Username

	if result.Playlist != nil {
		if err := player.PlayPlaylist(ctx, *result.Playlist, requester); err != nil {
			return followupText(s, i, fmt.Sprintf("Could not queue playlist: %v", err))
		}
		return followupText(s, i, fmt.Sprintf("Queued playlist **%s** (%d tracks).",
			result.Playlist.Name, len(result.Playlist.Tracks)))
	}

	track := result.Tracks[0]
	if err := player.Play(ctx, track, requester, false); err != nil {
		return followupText(s, i, fmt.Sprintf("Could not play track: %v", err))
	}
	return followupText(s, i, fmt.Sprintf("Queued **%s**.", trackLabel(track)))
}

// search maps the source choice onto the node's search prefixes. Plain
// URLs always go through direct loading.
func (b *Bot) search(ctx context.Context, input, source string) (*lavalink.SearchResult, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return b.node.LoadTracks(ctx, input)
	}
	switch source {
	case "youtube-music":
		return b.node.SearchYouTubeMusic(ctx, input)
	case "soundcloud":
		return b.node.SearchSoundCloud(ctx, input)
	default:
		return b.node.SearchYouTube(ctx, input)
	}
}

// applyStoredSettings restores the guild's persisted volume and repeat
// preferences on a freshly created player.
func (b *Bot) applyStoredSettings(ctx context.Context, player *lavalink.Player) {
	record, err := b.store.GetGuildSettings(player.GuildID())
	if err != nil {
		return
	}
	if record.Volume != player.Volume() {
		_ = player.SetVolume(ctx, record.Volume)
	}
	player.SetRepeat(record.Repeat)
	player.SetQueueRepeat(record.QueueRepeat)
}

func (b *Bot) runSkip(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
	player, err := b.node.Player(i.GuildID)
	if err != nil {
		return respondText(s, i, "Nothing is playing.")
	}
	if err := player.Skip(ctx); err != nil {
		return respondText(s, i, fmt.Sprintf("Skip failed: %v", err))
	}
	return respondText(s, i, "Skipped.")
}

func (b *Bot) runStop(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
	player, err := b.node.Player(i.GuildID)
	if err != nil {
		return respondText(s, i, "Nothing is playing.")
	}
	if err := player.Stop(ctx); err != nil {
		return respondText(s, i, fmt.Sprintf("Stop failed: %v", err))
	}
	return respondText(s, i, "Playback stopped, queue cleared.")
}

func (b *Bot) runPause(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, paused bool) error {
	player, err := b.node.Player(i.GuildID)
	if err != nil {
		return respondText(s, i, "Nothing is playing.")
	}
	if err := player.Pause(ctx, paused); err != nil {
		return respondText(s, i, fmt.Sprintf("Pause failed: %v", err))
	}
	if paused {
		return respondText(s, i, "Paused.")
	}
	return respondText(s, i, "Resumed.")
}

func (b *Bot) runVolume(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	if len(sub.Options) == 0 {
		return respondText(s, i, "Volume level is required.")
	}
	level := int(sub.Options[0].IntValue())

	player, err := b.node.Player(i.GuildID)
	if err != nil {
		return respondText(s, i, "Nothing is playing.")
	}
	if err := player.SetVolume(ctx, level); err != nil {
		if errors.Is(err, lavalink.ErrVolumeRange) {
			return respondText(s, i, "Volume must be between 0 and 1000.")
		}
		return respondText(s, i, fmt.Sprintf("Volume change failed: %v", err))
	}
	if err := b.store.SetGuildVolume(i.GuildID, level); err != nil {
		b.log.Warn("failed to persist volume", zap.Error(err))
	}
	return respondText(s, i, fmt.Sprintf("Volume set to %d.", level))
}

func (b *Bot) runQueue(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	player, err := b.node.Player(i.GuildID)
	if err != nil {
		return respondText(s, i, "The queue is empty.")
	}
	queue := player.Queue()
	if len(queue) == 0 {
		return respondText(s, i, "The queue is empty.")
	}

	var sb strings.Builder
	for idx, track := range queue {
		if idx == 0 {
			fmt.Fprintf(&sb, "Now playing: **%s**\n", trackLabel(track))
			continue
		}
		fmt.Fprintf(&sb, "%d. %s\n", idx, trackLabel(track))
		if idx >= 10 {
			fmt.Fprintf(&sb, "... and %d more\n", len(queue)-idx-1)
			break
		}
	}
	return respondText(s, i, sb.String())
}

func (b *Bot) runHistory(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	history, err := b.store.FetchTrackHistory(i.GuildID)
	if err != nil || len(history) == 0 {
		return respondText(s, i, "No listening history yet.")
	}

	var sb strings.Builder
	for idx := len(history) - 1; idx >= 0; idx-- {
		entry := history[idx]
		fmt.Fprintf(&sb, "%s (requested by %s)\n", entry.Title, entry.Requester)
	}
	return respondText(s, i, sb.String())
}

func trackLabel(track lavalink.Track) string {
	if track.Info.Title == "" {
		return track.Info.URI
	}
	if track.Info.Author == "" {
		return track.Info.Title
	}
	return track.Info.Title + " by " + track.Info.Author
}

func respondText(s *discordgo.Session, i *discordgo.InteractionCreate, text string) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: text},
	})
}

func deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func followupText(s *discordgo.Session, i *discordgo.InteractionCreate, text string) error {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: text})
	return err
}
