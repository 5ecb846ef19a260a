package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"plugbot/internal/dispatcher"
)

func (b *Bot) handlePrefixCommand(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate) {
	fields := strings.Fields(strings.TrimPrefix(msg.Content, b.cfg.Prefix))
	if len(fields) == 0 {
		return
	}
	kind := dispatcher.ParseKind(fields[0])
	if kind == dispatcher.KindUnknown {
		return
	}

	cmd := dispatcher.Command{
		Kind:      kind,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		ActorID:   msg.Author.ID,
	}
	if len(msg.Mentions) > 0 {
		cmd.TargetID = msg.Mentions[0].ID
	}
	applyPrefixArgs(&cmd, fields[1:])

	reply := b.dispatcher.Dispatch(ctx, cmd)
	if reply.Content == "" {
		return
	}
	if _, err := session.ChannelMessageSendReply(msg.ChannelID, reply.Content, msg.Reference()); err != nil {
		b.logger.Warn("failed to reply to prefix command",
			zap.String("channel_id", msg.ChannelID),
			zap.Error(err),
		)
	}
}

// applyPrefixArgs fills the per-command fields from the raw argument list.
// For commands that consume a mention as the target, the mention token is
// skipped when scanning for numbers and reasons so "!mute @user 10" and
// "!mute 10 @user" parse the same way. Free-text commands keep their
// arguments verbatim, mentions included.
func applyPrefixArgs(cmd *dispatcher.Command, args []string) {
	switch cmd.Kind {
	case dispatcher.KindEcho, dispatcher.KindPoll, dispatcher.KindAnnounce:
		cmd.Text = strings.Join(args, " ")
		return
	}

	var rest []string
	for _, arg := range args {
		if strings.HasPrefix(arg, "<@") && strings.HasSuffix(arg, ">") {
			continue
		}
		rest = append(rest, arg)
	}

	switch cmd.Kind {
	case dispatcher.KindClear:
		if len(rest) > 0 {
			cmd.Amount, _ = strconv.Atoi(rest[0])
		} else {
			cmd.Amount = 1
		}
	case dispatcher.KindPurgeUser:
		cmd.Amount = 10
		if len(rest) > 0 {
			if amount, err := strconv.Atoi(rest[0]); err == nil {
				cmd.Amount = amount
			}
		}
	case dispatcher.KindSlowmode:
		if len(rest) > 0 {
			cmd.Seconds, _ = strconv.Atoi(rest[0])
		}
	case dispatcher.KindMute:
		if len(rest) > 0 {
			cmd.Minutes, _ = strconv.Atoi(rest[0])
		}
	case dispatcher.KindKick, dispatcher.KindBan, dispatcher.KindWarn:
		cmd.Reason = strings.Join(rest, " ")
	}
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if interaction.GuildID == "" {
		b.respond(session, interaction, "This command only works in a server.", true)
		return
	}

	data := interaction.ApplicationCommandData()
	kind := dispatcher.ParseKind(data.Name)
	if kind == dispatcher.KindUnknown {
		return
	}

	cmd := dispatcher.Command{
		Kind:      kind,
		GuildID:   interaction.GuildID,
		ChannelID: interaction.ChannelID,
	}
	if interaction.Member != nil && interaction.Member.User != nil {
		cmd.ActorID = interaction.Member.User.ID
	}
	applyInteractionOptions(&cmd, session, data.Options)
	if cmd.Kind == dispatcher.KindPurgeUser && cmd.Amount == 0 {
		cmd.Amount = 10
	}
	if cmd.Kind == dispatcher.KindClear && cmd.Amount == 0 {
		cmd.Amount = 1
	}

	reply := b.dispatcher.Dispatch(context.Background(), cmd)
	b.respond(session, interaction, reply.Content, reply.Ephemeral)
}

func applyInteractionOptions(cmd *dispatcher.Command, session *discordgo.Session, options []*discordgo.ApplicationCommandInteractionDataOption) {
	for _, option := range options {
		switch option.Name {
		case "user":
			if user := option.UserValue(session); user != nil {
				cmd.TargetID = user.ID
			}
		case "amount":
			cmd.Amount = int(option.IntValue())
		case "minutes":
			cmd.Minutes = int(option.IntValue())
		case "seconds":
			cmd.Seconds = int(option.IntValue())
		case "reason":
			cmd.Reason = option.StringValue()
		case "message", "question", "text":
			cmd.Text = option.StringValue()
		}
	}
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	if content == "" {
		content = "Done."
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
	if err != nil {
		b.logger.Warn("failed to respond to interaction", zap.Error(err))
	}
}
