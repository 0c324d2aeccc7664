package react

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextParserFunctionCall(t *testing.T) {
	p := TextParser{}.Parse("Thought: check stock\nAction: CheckInventory(code=\"M1\")")
	assert.Equal(t, "check stock", p.Thought)
	call, ok := p.Action.(FunctionCall)
	require.True(t, ok, "got %#v", p.Action)
	assert.Equal(t, "CheckInventory", call.Name)
	assert.Equal(t, map[string]any{"code": "M1"}, call.Args)
}

func TestTextParserFinish(t *testing.T) {
	p := TextParser{}.Parse("Thought: done\nAction: FINISH\nAnswer: All good")
	assert.Equal(t, "done", p.Thought)
	assert.Equal(t, Finish{Answer: "All good"}, p.Action)
}

func TestTextParserArguments(t *testing.T) {
	tests := []struct {
		name   string
		action string
		tool   string
		args   map[string]any
	}{
		{"single quotes", `Ship(dest='Dock 4', note='it\'s fragile')`, "Ship",
			map[string]any{"dest": "Dock 4", "note": "it's fragile"}},
		{"numbers and bools", `Adjust(code="M1", delta=-5, ratio=0.5, force=true, memo=null)`, "Adjust",
			map[string]any{"code": "M1", "delta": int64(-5), "ratio": 0.5, "force": true, "memo": nil}},
		{"json literals", `Reserve(lines=[{"sku":"A","qty":2}], opts={"rush":false})`, "Reserve",
			map[string]any{"lines": []any{map[string]any{"sku": "A", "qty": float64(2)}}, "opts": map[string]any{"rush": false}}},
		{"positional", `Ratio(10, 4, "x,y")`, "Ratio",
			map[string]any{"arg0": int64(10), "arg1": int64(4), "arg2": "x,y"}},
		{"lone object", `CheckInventory({"code": "M2"})`, "CheckInventory",
			map[string]any{"code": "M2"}},
		{"colon keys", `CheckInventory(code: "M3")`, "CheckInventory",
			map[string]any{"code": "M3"}},
		{"qualified name", `Inventory.CheckInventory(code="M4")`, "Inventory.CheckInventory",
			map[string]any{"code": "M4"}},
		{"no args", `Reset()`, "Reset", map[string]any{}},
		{"bare name", `Reset`, "Reset", map[string]any{}},
		{"trailing text", "CheckInventory(code=\"M5\") and then wait", "CheckInventory",
			map[string]any{"code": "M5"}},
		{"backticks", "`CheckInventory(code=\"M6\")`", "CheckInventory",
			map[string]any{"code": "M6"}},
		{"parens in string", `Note(text="a (b) c")`, "Note", map[string]any{"text": "a (b) c"}},
		{"multi-line args", "Ship(\n  dest=\"A\",\n  qty=3\n)", "Ship",
			map[string]any{"dest": "A", "qty": int64(3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := TextParser{}.Parse("Thought: go\nAction: " + tt.action)
			call, ok := p.Action.(FunctionCall)
			require.True(t, ok, "got %#v", p.Action)
			assert.Equal(t, tt.tool, call.Name)
			assert.Equal(t, tt.args, call.Args)
		})
	}
}

func TestTextParserFinishForms(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		answer string
	}{
		{"title case", "Thought: ok\nAction: Finish\nAnswer: 42 units", "42 units"},
		{"empty parens", "Thought: ok\nAction: FINISH()\nAnswer: yes", "yes"},
		{"final answer", "Thought: ok\nAction: FINISH\nFinal Answer: stock is fine", "stock is fine"},
		{"answer in call", "Thought: ok\nAction: FINISH(answer=\"inline\")", "inline"},
		{"positional answer", "Thought: ok\nAction: FINISH(\"positional\")", "positional"},
		{"same line", "Thought: ok\nAction: FINISH: short", "short"},
		{"multi-line answer", "Thought: ok\nAction: FINISH\nAnswer: line one\nline two", "line one\nline two"},
		{"no action line", "Thought: I know\nFinal Answer: nothing to do", "nothing to do"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := TextParser{}.Parse(tt.reply)
			assert.Equal(t, Finish{Answer: tt.answer}, p.Action)
		})
	}
}

func TestTextParserMissingThought(t *testing.T) {
	p := TextParser{}.Parse("Action: Reset()")
	assert.Equal(t, NoThought, p.Thought)
	assert.IsType(t, FunctionCall{}, p.Action)

	p = TextParser{}.Parse("Thought:\nAction: Reset()")
	assert.Equal(t, NoThought, p.Thought)
}

func TestTextParserMultiLineThought(t *testing.T) {
	p := TextParser{}.Parse("Thought: first\nsecond\r\nAction: Reset()")
	assert.Equal(t, "first\nsecond", p.Thought)
}

func TestTextParserInvalid(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"no action", "I think the stock is fine."},
		{"prose action", "Thought: x\nAction: I will check the stock"},
		{"unclosed paren", "Thought: x\nAction: CheckInventory(code=\"M1\""},
		{"unterminated string", "Thought: x\nAction: CheckInventory(code=\"M1)"},
		{"mismatched bracket", "Thought: x\nAction: Reserve(lines=[1, 2)"},
		{"empty action", "Thought: x\nAction:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := TextParser{}.Parse(tt.reply)
			inv, ok := p.Action.(Invalid)
			require.True(t, ok, "got %#v", p.Action)
			assert.NotEmpty(t, inv.Reason)
		})
	}
}

func TestFunctionCallString(t *testing.T) {
	c := FunctionCall{Name: "Adjust", Args: map[string]any{"delta": 3, "code": "M1"}}
	assert.Equal(t, `Adjust(code="M1", delta=3)`, c.String())

	p := TextParser{}.Parse("Action: " + c.String())
	assert.Equal(t, map[string]any{"code": "M1", "delta": int64(3)}, p.Action.(FunctionCall).Args)
}
