package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"plugbot/internal/config"
	"plugbot/internal/dispatcher"
	"plugbot/internal/modules/antispam"
	"plugbot/internal/modules/automod"
	"plugbot/internal/platform"
	"plugbot/internal/settings"
)

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	settings   *settings.Service
	dispatcher *dispatcher.Dispatcher
	antispam   *antispam.Module
	automod    *automod.Module
	client     platform.Client
	session    *discordgo.Session
}

// NewSession builds the discord session with the gateway intents the bot
// needs. Callers wrap it in a platform client and hand both to New.
func NewSession(cfg config.Config) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildPresences
	return session, nil
}

func New(cfg config.Config, logger *zap.Logger, session *discordgo.Session, client platform.Client, service *settings.Service, d *dispatcher.Dispatcher, spam *antispam.Module, filter *automod.Module) *Bot {
	return &Bot{
		cfg:        cfg,
		logger:     logger,
		settings:   service,
		dispatcher: d,
		antispam:   spam,
		automod:    filter,
		client:     client,
		session:    session,
	}
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	return b.registerCommands()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, _ *discordgo.Ready) {
	b.logger.Info("discord ready",
		zap.String("user", session.State.User.Username),
		zap.Int("guilds", len(session.State.Guilds)),
	)
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.GuildID == "" || event.User == nil {
		return
	}
	ctx := context.Background()
	current := b.settings.Get(ctx, event.GuildID)
	if !current.Welcome.Enabled || current.Welcome.ChannelID == "" {
		return
	}

	message := current.Welcome.Message
	if message == "" {
		message = "Welcome {user}!"
	}
	memberCount := 0
	if guild, err := session.State.Guild(event.GuildID); err == nil {
		memberCount = guild.MemberCount
	}
	replacer := strings.NewReplacer(
		"{user}", "<@"+event.User.ID+">",
		"{username}", event.User.Username,
		"{server}", guildName(session, event.GuildID),
		"{membercount}", strconv.Itoa(memberCount),
	)
	if _, err := b.client.SendMessage(ctx, current.Welcome.ChannelID, replacer.Replace(message)); err != nil {
		b.logger.Warn("failed to send welcome message",
			zap.String("guild_id", event.GuildID),
			zap.Error(err),
		)
	}
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}

	ctx := context.Background()
	if strings.HasPrefix(msg.Content, b.cfg.Prefix) {
		b.handlePrefixCommand(ctx, session, msg)
		return
	}

	current := b.settings.Get(ctx, msg.GuildID)
	if current.Moderation.Enabled {
		if b.antispam.HandleMessage(ctx, msg.GuildID, msg.ChannelID, msg.ID, msg.Author.ID) {
			// The message is gone; no point running the word filter on it.
			return
		}
	}
	if current.Moderation.AutoMod {
		b.automod.HandleMessage(ctx, msg.GuildID, msg.ChannelID, msg.ID, msg.Author.ID, msg.Content, current.Moderation.BannedWords)
	}
}

func guildName(session *discordgo.Session, guildID string) string {
	if guild, err := session.State.Guild(guildID); err == nil {
		return guild.Name
	}
	return "this server"
}
