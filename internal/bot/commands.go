package bot

import "github.com/bwmarrin/discordgo"

func (b *Bot) registerCommands() error {
	userOption := func(required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "target user",
			Required:    required,
		}
	}
	reasonOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "reason for the action",
		Required:    false,
	}

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "ping",
			Description: "Check that the bot is alive",
		},
		{
			Name:        "echo",
			Description: "Repeat a message",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "text",
					Description: "text to repeat",
					Required:    true,
				},
			},
		},
		{
			Name:        "dashboard",
			Description: "Get a link to the web dashboard",
		},
		{
			Name:        "serverinfo",
			Description: "Show information about this server",
		},
		{
			Name:        "userinfo",
			Description: "Show information about a member",
			Options:     []*discordgo.ApplicationCommandOption{userOption(false)},
		},
		{
			Name:        "clear",
			Description: "Delete recent messages in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "how many messages to delete (1-100)",
					Required:    true,
				},
			},
		},
		{
			Name:        "kick",
			Description: "Kick a member",
			Options:     []*discordgo.ApplicationCommandOption{userOption(true), reasonOption},
		},
		{
			Name:        "ban",
			Description: "Ban a member",
			Options:     []*discordgo.ApplicationCommandOption{userOption(true), reasonOption},
		},
		{
			Name:        "poll",
			Description: "Create a yes/no poll",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "question",
					Description: "the poll question",
					Required:    true,
				},
			},
		},
		{
			Name:        "settings",
			Description: "Show this server's bot settings",
		},
		{
			Name:        "warn",
			Description: "Warn a member",
			Options:     []*discordgo.ApplicationCommandOption{userOption(true), reasonOption},
		},
		{
			Name:        "mute",
			Description: "Mute a member",
			Options: []*discordgo.ApplicationCommandOption{
				userOption(true),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "minutes",
					Description: "duration in minutes, 0 for indefinite",
					Required:    false,
				},
			},
		},
		{
			Name:        "unmute",
			Description: "Unmute a member",
			Options:     []*discordgo.ApplicationCommandOption{userOption(true)},
		},
		{
			Name:        "slowmode",
			Description: "Set the channel slowmode",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "seconds",
					Description: "delay in seconds, 0 to disable",
					Required:    true,
				},
			},
		},
		{
			Name:        "purgeuser",
			Description: "Delete a member's recent messages in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				userOption(true),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "how many of their messages to delete (1-100)",
					Required:    false,
				},
			},
		},
		{
			Name:        "announce",
			Description: "Post an announcement in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "the announcement text",
					Required:    true,
				},
			},
		},
	}

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}

	for _, guild := range b.session.State.Guilds {
		if guild == nil {
			continue
		}
		guildCmds, err := b.session.ApplicationCommands(appID, guild.ID)
		if err != nil {
			continue
		}
		for _, cmd := range guildCmds {
			if _, ok := desired[cmd.Name]; ok {
				continue
			}
			_ = b.session.ApplicationCommandDelete(appID, guild.ID, cmd.ID)
		}
	}
	return nil
}
