package menu

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/sdbot/internal/params"
)

// Action tokens. Parameterised tokens are "<category>:<value>".
const (
	ActionGenerate     = "generate"
	ActionViewSettings = "view_settings"

	catMenu      = "menu"
	catQuality   = "quality"
	catSize      = "size"
	catSampler   = "sampler"
	catScheduler = "scheduler"
	catSteps     = "steps"
	catCFG       = "cfg"
	catToggle    = "toggle"
	catBack      = "back"
	catCustom    = "custom"
)

const (
	textWhatNext      = "What would you like to do?"
	textGenerating    = "🎨 Generating your image... This may take a moment."
	textGenerated     = "✅ Image generated successfully!\n\nSend another prompt to generate more images."
	textStillRunning  = "⏳ Your previous image is still generating. Please wait for it to finish."
	textNotConfigured = "❌ Image generation is not configured yet.\n\n" +
		"To enable image generation:\n" +
		"1. Set up your Stable Diffusion API (e.g., Google Colab)\n" +
		"2. Add GRADIO_API_URL to Cloud Run environment variables\n" +
		"3. Redeploy your bot\n\n" +
		"The bot works for everything else!"
	textSelectQuality = "Select a quality preset:"
	textSelectSize    = "Select image size:"
	textSelectSampler = "Select sampler:"
	textCancelled     = "Cancelled."
	textNothingToStop = "Nothing to cancel."
	textInvalidNumber = "Please send a valid number:"
	textCancelHint    = "\n\nOr send /cancel to go back."
	textNegativeSaved = "✓ Negative prompt updated"
	textWelcome       = "Welcome! 🎨\n\n" +
		"Send me any text prompt to generate an image.\n" +
		"For example: 'sunset over mountains, 4k, detailed'\n\n" +
		"After sending your prompt, you'll get options to adjust settings!"
	textHelp = "Send any text to use it as your prompt, then pick what to do from the menu.\n\n" +
		"/settings - show current settings\n" +
		"/cancel - stop entering a custom value\n" +
		"/history - your last generations\n" +
		"/help - show this message"

	promptSteps  = "Send me the number of steps (5-150):"
	promptCFG    = "Send me the CFG scale (1.0-20.0):"
	promptWidth  = "Send me the width in pixels (64-2048):"
	promptHeight = "Send me the height in pixels (64-2048):"
	promptSeed   = "Send me a seed number (-1 for random, or any positive number):"

	backLabel      = "« Back"
	displayLimit   = 50
	captionLimit   = 1024
	imageFilename  = "generated_image.png"
	failureSuffix  = "\n\nMake sure your Colab is running and try again."
	failurePrefix  = "❌ Generation failed: "
	settingsHeader = "📊 Current Settings:\n\n"
)

func token(category, value string) string {
	return category + ":" + value
}

func mainKeyboard() [][]Button {
	return [][]Button{
		{{Label: "🎨 Generate Image", Action: ActionGenerate}},
		{
			{Label: "⚡ Quality Preset", Action: token(catMenu, "quality")},
			{Label: "📐 Size", Action: token(catMenu, "size")},
		},
		{
			{Label: "🎛️ Advanced", Action: token(catMenu, "advanced")},
			{Label: "📊 View Settings", Action: ActionViewSettings},
		},
	}
}

func qualityKeyboard(cat params.Catalog) [][]Button {
	rows := make([][]Button, 0, len(cat.Qualities)+1)
	for _, p := range cat.Qualities {
		rows = append(rows, []Button{{Label: p.Name, Action: token(catQuality, p.Name)}})
	}
	return append(rows, []Button{{Label: backLabel, Action: token(catBack, "main")}})
}

func sizeKeyboard(cat params.Catalog) [][]Button {
	rows := make([][]Button, 0, len(cat.Sizes)+2)
	for _, p := range cat.Sizes {
		rows = append(rows, []Button{{Label: p.Name, Action: token(catSize, p.Name)}})
	}
	rows = append(rows, []Button{
		{Label: "✏️ Custom Width", Action: token(catCustom, "width")},
		{Label: "✏️ Custom Height", Action: token(catCustom, "height")},
	})
	return append(rows, []Button{{Label: backLabel, Action: token(catBack, "main")}})
}

func advancedKeyboard() [][]Button {
	return [][]Button{
		{
			{Label: "🔄 Sampler", Action: token(catMenu, "sampler")},
			{Label: "⏱️ Scheduler", Action: token(catMenu, "scheduler")},
		},
		{
			{Label: "Steps: -5", Action: token(catSteps, "dec")},
			{Label: "Steps: +5", Action: token(catSteps, "inc")},
			{Label: "✏️ Custom", Action: token(catCustom, "steps")},
		},
		{
			{Label: "CFG: -0.5", Action: token(catCFG, "dec")},
			{Label: "CFG: +0.5", Action: token(catCFG, "inc")},
			{Label: "✏️ Custom", Action: token(catCustom, "cfg")},
		},
		{
			{Label: "🎲 Seed", Action: token(catCustom, "seed")},
			{Label: "💬 Negative Prompt", Action: token(catCustom, "negative")},
		},
		{
			{Label: "🔧 Restore Faces", Action: token(catToggle, string(params.FieldRestoreFaces))},
			{Label: "🔁 Tiling", Action: token(catToggle, string(params.FieldTiling))},
		},
		{{Label: backLabel, Action: token(catBack, "main")}},
	}
}

// pairKeyboard lays names out two per row with a back button to the advanced screen.
func pairKeyboard(category string, names []string) [][]Button {
	rows := make([][]Button, 0, len(names)/2+2)
	for i := 0; i < len(names); i += 2 {
		row := []Button{{Label: names[i], Action: token(category, names[i])}}
		if i+1 < len(names) {
			row = append(row, Button{Label: names[i+1], Action: token(category, names[i+1])})
		}
		rows = append(rows, row)
	}
	return append(rows, []Button{{Label: backLabel, Action: token(catBack, "advanced")}})
}

func promptSavedText(p params.Set) string {
	return fmt.Sprintf("✨ Prompt saved: '%s'\n\n"+
		"Current settings:\n"+
		"• Quality: %d steps, CFG %s\n"+
		"• Size: %dx%d\n"+
		"• Sampler: %s\n\n"+
		"%s",
		p.Prompt, p.Steps, formatCFG(p.CFGScale), p.Width, p.Height, p.Sampler, textWhatNext)
}

func advancedText(p params.Set) string {
	return fmt.Sprintf("Advanced Settings:\n\nSteps: %d\nCFG Scale: %s\nSampler: %s",
		p.Steps, formatCFG(p.CFGScale), p.Sampler)
}

func schedulerText(p params.Set) string {
	return fmt.Sprintf("Select scheduler (current: %s):", p.Scheduler)
}

func settingsText(p params.Set) string {
	var b strings.Builder
	b.WriteString(settingsHeader)
	fmt.Fprintf(&b, "Prompt: %s\n", clip(p.Prompt, displayLimit))
	fmt.Fprintf(&b, "Negative: %s\n", clip(p.NegativePrompt, displayLimit))
	fmt.Fprintf(&b, "Steps: %d\n", p.Steps)
	fmt.Fprintf(&b, "CFG Scale: %s\n", formatCFG(p.CFGScale))
	fmt.Fprintf(&b, "Size: %dx%d\n", p.Width, p.Height)
	fmt.Fprintf(&b, "Sampler: %s\n", p.Sampler)
	fmt.Fprintf(&b, "Scheduler: %s\n", p.Scheduler)
	fmt.Fprintf(&b, "Seed: %s\n", seedText(p.Seed))
	fmt.Fprintf(&b, "Restore Faces: %s\n", onOff(p.RestoreFaces))
	fmt.Fprintf(&b, "Tiling: %s", onOff(p.Tiling))
	return b.String()
}

func negativePromptText(p params.Set) string {
	return fmt.Sprintf("Current negative prompt:\n%s\n\nSend me the new negative prompt:", p.NegativePrompt)
}

func captionText(p params.Set) string {
	caption := fmt.Sprintf("Prompt: %s\nSteps: %d, CFG: %s, Size: %dx%d",
		p.Prompt, p.Steps, formatCFG(p.CFGScale), p.Width, p.Height)
	if utf8.RuneCountInString(caption) > captionLimit {
		caption = string([]rune(caption)[:captionLimit-3]) + "..."
	}
	return caption
}

// formatCFG prints whole numbers with one decimal, as in "7.0".
func formatCFG(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

func seedText(seed int64) string {
	if seed == params.RandomSeed {
		return "random"
	}
	return strconv.FormatInt(seed, 10)
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

// clip keeps the first n characters and appends "..." when s is longer.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
