package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/apperr"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		content    string
		wantOK     bool
		wantName   string
		wantTokens []string
		wantTail   string
	}{
		{
			name:     "bare command",
			content:  "!ping",
			wantOK:   true,
			wantName: "ping",
		},
		{
			name:       "command with tokens",
			content:    "!pay <@111> 500",
			wantOK:     true,
			wantName:   "pay",
			wantTokens: []string{"<@111>", "500"},
			wantTail:   "<@111> 500",
		},
		{
			name:       "quoted token groups words",
			content:    `!buy "health potion" 3`,
			wantOK:     true,
			wantName:   "buy",
			wantTokens: []string{"health potion", "3"},
			wantTail:   `"health potion" 3`,
		},
		{
			name:       "unterminated quote runs to the end",
			content:    `!buy "health potion`,
			wantOK:     true,
			wantName:   "buy",
			wantTokens: []string{"health potion"},
		},
		{
			name:    "wrong prefix",
			content: "?ping",
			wantOK:  false,
		},
		{
			name:    "prefix only",
			content: "!   ",
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, tokens, rawTail, ok := parseCommand(tt.content, "!")
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantTokens, tokens)
			if tt.wantTail != "" {
				assert.Equal(t, tt.wantTail, rawTail)
			}
		})
	}
}

func TestCoerceArgs(t *testing.T) {
	t.Parallel()

	transfer := &CommandDescriptor{
		Name: "pay",
		Options: []Option{
			{Name: "user", Type: OptionUser, Required: true},
			{Name: "amount", Type: OptionInt, Required: true, MinValue: 1, MaxValue: 1_000_000},
		},
	}

	t.Run("mention and integer", func(t *testing.T) {
		args, err := coerceArgs(transfer, []string{"<@12345>", "500"}, "<@12345> 500", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(12345), args.Snowflake("user"))
		assert.Equal(t, int64(500), args.Int("amount"))
	})

	t.Run("nickname mention and bare id", func(t *testing.T) {
		args, err := coerceArgs(transfer, []string{"<@!12345>", "500"}, "", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(12345), args.Snowflake("user"))
	})

	t.Run("thousands separators are accepted", func(t *testing.T) {
		args, err := coerceArgs(transfer, []string{"98765", "1,500"}, "", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), args.Int("amount"))
	})

	t.Run("integer out of range", func(t *testing.T) {
		_, err := coerceArgs(transfer, []string{"<@12345>", "0"}, "", 0)
		require.Error(t, err)
		assert.Equal(t, apperr.KindBadArgument, apperr.KindOf(err))
	})

	t.Run("missing required option", func(t *testing.T) {
		_, err := coerceArgs(transfer, []string{"<@12345>"}, "", 0)
		require.Error(t, err)
		assert.Equal(t, apperr.KindBadArgument, apperr.KindOf(err))
	})

	t.Run("reply target substitutes an omitted user option", func(t *testing.T) {
		jail := &CommandDescriptor{
			Name: "jail",
			Options: []Option{
				{Name: "user", Type: OptionUser, Required: true},
				{Name: "reason", Type: OptionTail},
			},
		}
		args, err := coerceArgs(jail, []string{"spamming"}, "spamming", 777)
		require.NoError(t, err)
		assert.Equal(t, int64(777), args.Snowflake("user"))
		assert.Equal(t, "spamming", args.String("reason"))
	})

	t.Run("garbage user token", func(t *testing.T) {
		_, err := coerceArgs(transfer, []string{"bob", "500"}, "", 0)
		require.Error(t, err)
		assert.Equal(t, apperr.KindBadArgument, apperr.KindOf(err))
	})
}

func TestCoerceArgs_Tail(t *testing.T) {
	t.Parallel()

	jail := &CommandDescriptor{
		Name: "jail",
		Options: []Option{
			{Name: "user", Type: OptionUser, Required: true},
			{Name: "reason", Type: OptionTail},
		},
	}

	t.Run("tail captures the remainder with spaces", func(t *testing.T) {
		raw := "<@12345> spamming invite links"
		args, err := coerceArgs(jail, []string{"<@12345>", "spamming", "invite", "links"}, raw, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(12345), args.Snowflake("user"))
		assert.Equal(t, "spamming invite links", args.String("reason"))
	})

	t.Run("absent optional tail", func(t *testing.T) {
		args, err := coerceArgs(jail, []string{"<@12345>"}, "<@12345>", 0)
		require.NoError(t, err)
		assert.False(t, args.Has("reason"))
	})

	t.Run("quoted token before the tail", func(t *testing.T) {
		item := &CommandDescriptor{
			Name: "shopadd",
			Options: []Option{
				{Name: "price", Type: OptionInt, Required: true},
				{Name: "name", Type: OptionTail, Required: true},
			},
		}
		args, err := coerceArgs(item, []string{"100", "health", "potion"}, "100 health potion", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(100), args.Int("price"))
		assert.Equal(t, "health potion", args.String("name"))
	})

	t.Run("missing required tail", func(t *testing.T) {
		item := &CommandDescriptor{
			Name:    "buy",
			Options: []Option{{Name: "item", Type: OptionTail, Required: true}},
		}
		_, err := coerceArgs(item, nil, "", 0)
		require.Error(t, err)
		assert.Equal(t, apperr.KindBadArgument, apperr.KindOf(err))
	})
}

func TestParseSnowflake(t *testing.T) {
	t.Parallel()

	id, ok := parseSnowflake("<#555>", "<#")
	require.True(t, ok)
	assert.Equal(t, int64(555), id)

	id, ok = parseSnowflake("987654", "<#")
	require.True(t, ok)
	assert.Equal(t, int64(987654), id)

	_, ok = parseSnowflake("<#-1>", "<#")
	assert.False(t, ok)

	_, ok = parseSnowflake("<@abc>", "<@")
	assert.False(t, ok)

	// Overlapping prefixes: the longer one must win regardless of order
	id, ok = parseSnowflake("<@!777>", "<@", "<@!")
	require.True(t, ok)
	assert.Equal(t, int64(777), id)

	id, ok = parseSnowflake("<@!777>", "<@!", "<@")
	require.True(t, ok)
	assert.Equal(t, int64(777), id)
}
