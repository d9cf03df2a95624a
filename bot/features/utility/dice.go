package utility

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"warden/apperr"
	"warden/bot"
)

const (
	maxDiceCount = 20
	maxDiceSides = 1000
)

var diceSpec = regexp.MustCompile(`^(\d{1,3})d(\d{1,4})([+-]\d{1,9})?$`)

// rollDice parses and rolls an NdS+M expression
func rollDice(spec string, intn func(int) int) (rolls []int, modifier int, total int, err error) {
	m := diceSpec.FindStringSubmatch(strings.ToLower(strings.TrimSpace(spec)))
	if m == nil {
		return nil, 0, 0, apperr.New(apperr.KindBadArgument, "Dice spec must look like `2d6` or `3d20+4`.")
	}

	count, _ := strconv.Atoi(m[1])
	sides, _ := strconv.Atoi(m[2])
	if count < 1 || count > maxDiceCount {
		return nil, 0, 0, apperr.New(apperr.KindBadArgument, "Dice count must be between 1 and %d.", maxDiceCount)
	}
	if sides < 2 || sides > maxDiceSides {
		return nil, 0, 0, apperr.New(apperr.KindBadArgument, "Dice sides must be between 2 and %d.", maxDiceSides)
	}
	if m[3] != "" {
		modifier, _ = strconv.Atoi(m[3])
	}

	rolls = make([]int, count)
	for i := range rolls {
		rolls[i] = intn(sides) + 1
		total += rolls[i]
	}
	total += modifier
	return rolls, modifier, total, nil
}

func (f *Feature) handleDice(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	rolls, modifier, total, err := rollDice(inv.Args.String("spec"), rand.Intn)
	if err != nil {
		return nil, err
	}

	parts := make([]string, len(rolls))
	for i, r := range rolls {
		parts[i] = strconv.Itoa(r)
	}
	content := fmt.Sprintf("🎲 [%s]", strings.Join(parts, ", "))
	if modifier != 0 {
		content += fmt.Sprintf(" %+d", modifier)
	}
	content += fmt.Sprintf(" = **%d**", total)
	return &bot.Reply{Content: content}, nil
}
