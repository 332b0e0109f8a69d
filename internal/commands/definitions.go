package commands

import "github.com/bwmarrin/discordgo"

func GetCommands() []*discordgo.ApplicationCommand {
	userOpt := func(desc string, required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: desc,
			Required:    required,
		}
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:         "poker",
			Description:  "Track buy-ins and cash-outs and settle the table",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "start",
					Description: "Start a session in this channel",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionNumber,
							Name:        "buyin",
							Description: "Cash per buy-in",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionNumber,
							Name:        "ratio",
							Description: "Cash value of one chip",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "blinds",
							Description: "Blind level, e.g. 1/2",
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "players",
							Description: "Mentions of the starting players (default: you)",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "join",
					Description: "Seat a player in the running session",
					Options:     []*discordgo.ApplicationCommandOption{userOpt("Player to seat (default: you)", false)},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "buyin",
					Description: "Add (or remove) standard buy-ins",
					Options: []*discordgo.ApplicationCommandOption{
						userOpt("Player (default: you)", false),
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "count",
							Description: "Buy-ins to add, negative to undo (default: 1)",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "extra",
					Description: "Record a non-standard buy-in amount",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionNumber,
							Name:        "amount",
							Description: "Cash amount",
							Required:    true,
						},
						userOpt("Player (default: you)", false),
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "cashout",
					Description: "Record the cash a player leaves with",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionNumber,
							Name:        "amount",
							Description: "Cash amount, or chip count with chips:true",
							Required:    true,
						},
						userOpt("Player (default: you)", false),
						{
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Name:        "chips",
							Description: "Amount is a chip count",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "status",
					Description: "Show the running session",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "end",
					Description: "End the session and settle",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Name:        "force",
							Description: "Count players without a cash-out as cashing out 0",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "result",
					Description: "Show the settlement of the last session",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "done",
					Description: "Mark the transfer between you and another player as paid",
					Options:     []*discordgo.ApplicationCommandOption{userOpt("The other player", true)},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remind",
					Description: "Show or set the unpaid transfer reminder interval (0 disables)",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "minutes",
							Description: "Minutes between reminders (omit to show the current setting)",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "stats",
					Description: "Show a player's results",
					Options:     []*discordgo.ApplicationCommandOption{userOpt("Player (default: you)", false)},
				},
			},
		},
	}
}

func boolPtr(b bool) *bool {
	return &b
}
