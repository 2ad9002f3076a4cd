package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const voiceForwardTimeout = 10 * time.Second

// onVoiceStateUpdate forwards the membership half of the voice
// handshake. The node ignores signals for users other than the bot.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if b.node == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), voiceForwardTimeout)
	defer cancel()
	if err := b.node.VoiceStateUpdate(ctx, e.GuildID, e.UserID, e.SessionID, e.ChannelID); err != nil {
		b.log.Warn("voice state forwarding failed",
			zap.String("guild_id", e.GuildID), zap.Error(err))
	}
}

// onVoiceServerUpdate forwards the token half of the voice handshake.
func (b *Bot) onVoiceServerUpdate(s *discordgo.Session, e *discordgo.VoiceServerUpdate) {
	if b.node == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), voiceForwardTimeout)
	defer cancel()
	if err := b.node.VoiceServerUpdate(ctx, e.GuildID, e.Endpoint, e.Token); err != nil {
		b.log.Warn("voice server forwarding failed",
			zap.String("guild_id", e.GuildID), zap.Error(err))
	}
}

// findUserVoiceChannel returns the voice channel the user currently
// occupies in the guild.
func (b *Bot) findUserVoiceChannel(guildID, userID string) (string, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("guild state: %w", err)
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID, nil
		}
	}
	return "", fmt.Errorf("user is not in a voice channel")
}

// joinVoiceChannel sends the gateway voice state update that makes the
// bot enter (or leave, with an empty channel id) a voice channel. The
// actual audio connection is owned by the remote node, so the session
// must not open its own voice websocket.
func (b *Bot) joinVoiceChannel(guildID, channelID string) error {
	return b.dg.ChannelVoiceJoinManual(guildID, channelID, false, true)
}
