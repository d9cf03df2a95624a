package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// OptionType identifies the coercion applied to a command argument
type OptionType int

const (
	OptionString OptionType = iota
	OptionInt
	OptionUser
	OptionChannel
	OptionRole
	// OptionTail consumes the rest of the message verbatim. Only valid as
	// the final option.
	OptionTail
)

// Option describes one argument in a command's schema
type Option struct {
	Name        string
	Type        OptionType
	Description string
	Required    bool
	MinValue    int64
	MaxValue    int64 // both zero means unbounded
}

// Reply is the envelope a handler returns for delivery to the invoker
type Reply struct {
	Content   string
	Embed     *discordgo.MessageEmbed
	Ephemeral bool
}

// HandlerFunc executes one command invocation
type HandlerFunc func(ctx context.Context, inv *Invocation) (*Reply, error)

// CommandDescriptor declares one command served on both the prefix and the
// slash surface. Permissions are discordgo permission bits required of the
// invoker; zero means everyone. Hierarchical commands additionally require
// the invoker's top role to sit strictly above the target's, and reject
// self and bot targets. Queue controls the single-flight policy: a second
// concurrent invocation by the same user waits when true and is rejected
// when false.
type CommandDescriptor struct {
	Name         string
	Aliases      []string
	Description  string
	Options      []Option
	Permissions  int64
	Cooldown     time.Duration
	Hierarchical bool
	Queue        bool
	Handler      HandlerFunc
}

// Registry resolves command names case-insensitively to descriptors
type Registry struct {
	mu    sync.RWMutex
	cmds  map[string]*CommandDescriptor
	order []*CommandDescriptor
}

func NewRegistry() *Registry {
	return &Registry{cmds: make(map[string]*CommandDescriptor)}
}

// Register adds a descriptor under its name and aliases
func (r *Registry) Register(d *CommandDescriptor) error {
	if d.Name == "" {
		return fmt.Errorf("command descriptor has no name")
	}
	if d.Handler == nil {
		return fmt.Errorf("command %q has no handler", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	names := append([]string{d.Name}, d.Aliases...)
	for _, name := range names {
		key := strings.ToLower(name)
		if _, exists := r.cmds[key]; exists {
			return fmt.Errorf("command %q already registered", key)
		}
	}
	for _, name := range names {
		r.cmds[strings.ToLower(name)] = d
	}
	r.order = append(r.order, d)
	return nil
}

// Resolve finds the descriptor for a name, case-insensitively
func (r *Registry) Resolve(name string) (*CommandDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.cmds[strings.ToLower(name)]
	return d, ok
}

// List returns descriptors in registration order
func (r *Registry) List() []*CommandDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*CommandDescriptor, len(r.order))
	copy(out, r.order)
	return out
}

// ApplicationCommands converts every descriptor into the slash command
// definitions registered with Discord. Tail options surface as plain string
// options on the slash side.
func (r *Registry) ApplicationCommands() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*discordgo.ApplicationCommand, 0, len(r.order))
	for _, d := range r.order {
		cmd := &discordgo.ApplicationCommand{
			Name:        d.Name,
			Description: d.Description,
		}
		if d.Permissions != 0 {
			perms := d.Permissions
			cmd.DefaultMemberPermissions = &perms
		}
		for _, opt := range d.Options {
			cmd.Options = append(cmd.Options, &discordgo.ApplicationCommandOption{
				Type:        applicationOptionType(opt.Type),
				Name:        opt.Name,
				Description: opt.Description,
				Required:    opt.Required,
			})
		}
		out = append(out, cmd)
	}
	return out
}

func applicationOptionType(t OptionType) discordgo.ApplicationCommandOptionType {
	switch t {
	case OptionInt:
		return discordgo.ApplicationCommandOptionInteger
	case OptionUser:
		return discordgo.ApplicationCommandOptionUser
	case OptionChannel:
		return discordgo.ApplicationCommandOptionChannel
	case OptionRole:
		return discordgo.ApplicationCommandOptionRole
	default:
		return discordgo.ApplicationCommandOptionString
	}
}
