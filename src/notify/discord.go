// Package notify posts governance activity from the change feed to Discord.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/netstate-gov/src/events"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"go.uber.org/zap"
)

const (
	colorProposal = 0x5865F2
	colorVote     = 0x57F287
	colorForum    = 0xFEE75C
	colorCitizen  = 0xEB459E

	maxDescription = 300
)

// sender is the part of *discordgo.Session the notifier uses.
type sender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Discord struct {
	session   sender
	channelID string
	log       *zap.SugaredLogger
}

// NewDiscord opens a bot session for token.
func NewDiscord(token, channelID string, log *zap.SugaredLogger) (*Discord, *discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, nil, fmt.Errorf("discord session: %w", err)
	}
	return &Discord{session: session, channelID: channelID, log: log}, session, nil
}

// Run posts a message for every insert on the announced tables until ctx is done.
func (d *Discord) Run(ctx context.Context, bus events.Bus) error {
	changes, err := bus.Subscribe(ctx, events.TableProposals, events.TableVotes, events.TableForumPosts, events.TableCitizens)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			embed, err := buildEmbed(c)
			if err != nil {
				d.log.Warnw("skipping change notification", "table", c.Table, "id", c.ID, "error", err)
				continue
			}
			if embed == nil {
				continue
			}
			if _, err := d.session.ChannelMessageSendEmbed(d.channelID, embed); err != nil {
				d.log.Errorw("failed to send discord notification", "table", c.Table, "id", c.ID, "error", err)
			}
		}
	}
}

// buildEmbed returns nil for changes that are not announced.
func buildEmbed(c events.Change) (*discordgo.MessageEmbed, error) {
	if c.Type != events.Insert {
		return nil, nil
	}

	switch c.Table {
	case events.TableProposals:
		var p gov.Proposal
		if err := json.Unmarshal(c.Record, &p); err != nil {
			return nil, err
		}
		fields := []*discordgo.MessageEmbedField{
			{Name: "Category", Value: p.Category, Inline: true},
			{Name: "Voting", Value: p.VotingType.String(), Inline: true},
			{Name: "Ends", Value: p.EndTime.UTC().Format("2006-01-02 15:04 MST"), Inline: true},
		}
		if p.Anchored() {
			fields = append(fields, &discordgo.MessageEmbedField{Name: "On-chain ID", Value: fmt.Sprint(*p.BlockchainProposalID), Inline: true})
		}
		return &discordgo.MessageEmbed{
			Title:       "New Proposal Created",
			Description: fmt.Sprintf("**%s**\n%s", p.Title, truncate(wrapURLsNoEmbed(p.Description), maxDescription)),
			Color:       colorProposal,
			Fields:      fields,
			Footer:      &discordgo.MessageEmbedFooter{Text: "Proposed by " + shortAddress(p.ProposerAddress)},
		}, nil

	case events.TableVotes:
		var v gov.Vote
		if err := json.Unmarshal(c.Record, &v); err != nil {
			return nil, err
		}
		side := "against"
		if v.Support {
			side = "for"
		}
		desc := fmt.Sprintf("%s voted **%s** with weight %d", shortAddress(v.VoterAddress), side, v.Weight)
		if v.TxHash != nil {
			desc += "\nConfirmed on-chain in `" + *v.TxHash + "`"
		}
		return &discordgo.MessageEmbed{
			Title:       "New Vote Cast",
			Description: desc,
			Color:       colorVote,
			Footer:      &discordgo.MessageEmbedFooter{Text: "Proposal " + v.ProposalID},
		}, nil

	case events.TableForumPosts:
		var p gov.ForumPost
		if err := json.Unmarshal(c.Record, &p); err != nil {
			return nil, err
		}
		return &discordgo.MessageEmbed{
			Title:       "New Forum Post",
			Description: fmt.Sprintf("**%s**\n%s", p.Title, truncate(wrapURLsNoEmbed(p.Content), maxDescription)),
			Color:       colorForum,
			Footer:      &discordgo.MessageEmbedFooter{Text: p.Category + " by " + shortAddress(p.AuthorAddress)},
		}, nil

	case events.TableCitizens:
		var ct gov.Citizen
		if err := json.Unmarshal(c.Record, &ct); err != nil {
			return nil, err
		}
		return &discordgo.MessageEmbed{
			Title:       "New Citizen",
			Description: fmt.Sprintf("%s received a Civic ID", shortAddress(ct.WalletAddress)),
			Color:       colorCitizen,
		}, nil
	}
	return nil, nil
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

var urlPattern = regexp.MustCompile(`https?://[^\s\[\]()<>]+`)

// wrapURLsNoEmbed wraps bare URLs in angle brackets so Discord does not unfurl
// them inside the notification.
func wrapURLsNoEmbed(text string) string {
	return urlPattern.ReplaceAllStringFunc(text, func(u string) string {
		core := strings.TrimRight(u, ".,;:!?")
		return "<" + core + ">" + u[len(core):]
	})
}
