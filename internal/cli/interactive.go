package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/apresai/voicekit/internal/tts"
)

// menuItem represents a single configurable option in the TUI.
type menuItem struct {
	label   string
	value   string
	options []menuOption
	editing bool
	cursor  int // cursor within options when editing
}

type menuOption struct {
	label string
	value string
}

// menuState tracks which phase the TUI is in.
type menuState int

const (
	stateMenu menuState = iota
	stateEditing
)

// tuiModel is the Bubble Tea model for the setup menu.
type tuiModel struct {
	items     []menuItem
	cursor    int
	state     menuState
	width     int
	err       error
	confirmed bool
	cancelled bool
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	menuLabelStyle = lipgloss.NewStyle().
			Width(12).
			Align(lipgloss.Right).
			MarginRight(2)

	menuValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	menuValueDimStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#555555")).
				Italic(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	optionStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	selectedOptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#04B575")).
				Bold(true).
				PaddingLeft(2)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 3)

	buttonDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Padding(0, 3)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	headerBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#7D56F4")).
			MarginBottom(1).
			PaddingBottom(0)
)

const (
	idxText = iota
	idxInput
	idxOutput
	idxProvider
	idxLanguage
	idxAccent
	idxVoice
	idxSpeed
	idxPitch
	idxNormalize
	idxSynthesize
)

func providerOptions() []menuOption {
	var opts []menuOption
	for _, p := range tts.Providers() {
		opts = append(opts, menuOption{
			label: fmt.Sprintf("%s (%s) - %s", p.Name, p.Kind, p.Description),
			value: p.Name,
		})
	}
	return opts
}

// voiceOptions lists the voices of one provider. The empty value keeps the
// provider default.
func voiceOptions(provider string) []menuOption {
	opts := []menuOption{{label: "Provider default", value: ""}}
	voices, err := tts.AvailableVoices(provider)
	if err != nil {
		return opts
	}
	for _, v := range voices {
		label := fmt.Sprintf("%s - %s (%s)", v.Name, v.Description, v.Gender)
		if v.Default {
			label += " (default)"
		}
		opts = append(opts, menuOption{label: label, value: v.ID})
	}
	return opts
}

func accentOptions(provider string) []menuOption {
	if provider != "gtts" {
		return []menuOption{{label: "Not supported (" + provider + ")", value: ""}}
	}
	return []menuOption{
		{label: "Indonesia (co.id) (default)", value: "co.id"},
		{label: "United States (com)", value: "com"},
		{label: "United Kingdom (co.uk)", value: "co.uk"},
		{label: "Australia (com.au)", value: "com.au"},
		{label: "India (co.in)", value: "co.in"},
	}
}

var languageOptions = []menuOption{
	{label: "Indonesian (id) (default)", value: "id"},
	{label: "English (en)", value: "en"},
	{label: "Spanish (es)", value: "es"},
	{label: "French (fr)", value: "fr"},
	{label: "German (de)", value: "de"},
	{label: "Japanese (ja)", value: "ja"},
}

var speedOptions = []menuOption{
	{label: "Normal (default)", value: "normal"},
	{label: "Slow", value: "slow"},
}

var pitchOptions = []menuOption{
	{label: "-8 (much deeper)", value: "-8"},
	{label: "-5 (deeper)", value: "-5"},
	{label: "-3 (slightly deeper)", value: "-3"},
	{label: "0 (unchanged) (default)", value: "0"},
	{label: "+3 (slightly higher)", value: "3"},
	{label: "+5 (higher)", value: "5"},
	{label: "+8 (much higher)", value: "8"},
}

var normalizeOptions = []menuOption{
	{label: "Peak, -0.1 dBFS ceiling (default)", value: "peak"},
	{label: "Loudness, -16 LUFS", value: "loudness"},
	{label: "None", value: "none"},
}

func buildMenuItems() []menuItem {
	speed := "normal"
	if flagSlow {
		speed = "slow"
	}
	items := []menuItem{
		{label: "Text", value: flagText},
		{label: "Input", value: flagInput},
		{label: "Output", value: flagOutput},
		{label: "Provider", value: flagProvider, options: providerOptions()},
		{label: "Language", value: flagLang, options: languageOptions},
		{label: "Accent", value: flagTLD, options: accentOptions(flagProvider)},
		{label: "Voice", value: flagVoice, options: voiceOptions(flagProvider)},
		{label: "Speed", value: speed, options: speedOptions},
		{label: "Pitch", value: strconv.FormatFloat(flagSemitones, 'g', -1, 64), options: pitchOptions},
		{label: "Normalize", value: flagNormalize, options: normalizeOptions},
		{label: ">>> Synthesize <<<"},
	}
	for i := range items {
		items[i].selectCurrent()
	}
	return items
}

// selectCurrent moves the option cursor to the item's current value.
func (it *menuItem) selectCurrent() {
	it.cursor = 0
	for j, opt := range it.options {
		if opt.value == it.value {
			it.cursor = j
			return
		}
	}
}

func initialTUIModel() tuiModel {
	return tuiModel{
		items:  buildMenuItems(),
		cursor: idxText,
		state:  stateMenu,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) isTextInput(idx int) bool {
	return idx == idxText || idx == idxInput || idx == idxOutput
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateMenu:
			return m.updateMenu(msg)
		case stateEditing:
			return m.updateEditing(msg)
		}
	}
	return m, nil
}

func (m tuiModel) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancelled = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case "enter", " ":
		if m.cursor == idxSynthesize {
			if err := m.validate(); err != nil {
				m.err = err
				return m, nil
			}
			m.confirmed = true
			return m, tea.Quit
		}
		if m.isTextInput(m.cursor) || len(m.items[m.cursor].options) > 0 {
			m.state = stateEditing
			m.items[m.cursor].editing = true
			m.err = nil
		}
	}
	return m, nil
}

func (m tuiModel) validate() error {
	text := m.items[idxText].value
	input := m.items[idxInput].value
	switch {
	case text != "" && input != "":
		return errors.New("set either Text or Input, not both")
	case m.items[idxOutput].value == "":
		return errors.New("Output is required")
	}
	return nil
}

func (m tuiModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	idx := m.cursor
	item := &m.items[idx]

	if m.isTextInput(idx) {
		switch msg.String() {
		case "enter":
			item.editing = false
			m.state = stateMenu
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "esc":
			item.editing = false
			m.state = stateMenu
		case "backspace":
			if r := []rune(item.value); len(r) > 0 {
				item.value = string(r[:len(r)-1])
			}
		case "ctrl+u":
			item.value = ""
		default:
			if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
				item.value += string(msg.Runes)
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "enter", " ":
		if item.cursor >= 0 && item.cursor < len(item.options) {
			item.value = item.options[item.cursor].value
		}
		item.editing = false
		m.state = stateMenu

		// Accent and voice choices depend on the provider.
		if idx == idxProvider {
			m.items[idxAccent].options = accentOptions(item.value)
			if item.value == "gtts" {
				m.items[idxAccent].value = "co.id"
			} else {
				m.items[idxAccent].value = ""
			}
			m.items[idxAccent].selectCurrent()
			m.items[idxVoice].options = voiceOptions(item.value)
			m.items[idxVoice].value = ""
			m.items[idxVoice].selectCurrent()
		}

		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
		return m, nil

	case "esc":
		item.editing = false
		m.state = stateMenu
		return m, nil

	case "up", "k":
		if item.cursor > 0 {
			item.cursor--
		}

	case "down", "j":
		if item.cursor < len(item.options)-1 {
			item.cursor++
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	var b strings.Builder

	b.WriteString(headerBorder.Render(titleStyle.Render("VoiceKit")))
	b.WriteString("\n")

	for i, item := range m.items {
		isActive := m.cursor == i

		if i == idxSynthesize {
			b.WriteString("\n")
			if isActive {
				b.WriteString("  " + buttonStyle.Render(" Synthesize "))
			} else {
				b.WriteString("  " + buttonDimStyle.Render(" Synthesize "))
			}
			b.WriteString("\n")
			continue
		}

		cursor := "  "
		if isActive {
			cursor = cursorStyle.Render("> ")
		}
		renderedLabel := menuLabelStyle.Render(item.label)

		var renderedValue string
		switch {
		case item.editing && m.isTextInput(i):
			renderedValue = menuValueStyle.Render(item.value + "_")
		case item.value == "":
			placeholder := "(not set)"
			switch i {
			case idxText:
				placeholder = "(default test sentence)"
			case idxInput:
				placeholder = "(optional: file, PDF, URL or -)"
			default:
				if len(item.options) > 0 {
					placeholder = item.options[0].label
				}
			}
			renderedValue = menuValueDimStyle.Render(placeholder)
		default:
			displayVal := item.value
			for _, opt := range item.options {
				if opt.value == item.value {
					displayVal = opt.label
					break
				}
			}
			renderedValue = menuValueStyle.Render(displayVal)
		}

		b.WriteString(cursor + renderedLabel + " " + renderedValue + "\n")

		if item.editing && len(item.options) > 0 {
			for j, opt := range item.options {
				if j == item.cursor {
					b.WriteString(selectedOptionStyle.Render("> "+opt.label) + "\n")
				} else {
					b.WriteString(optionStyle.Render("  "+opt.label) + "\n")
				}
			}
		}
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("  Error: "+m.err.Error()) + "\n")
	}

	switch m.state {
	case stateMenu:
		b.WriteString(helpStyle.Render("  j/k or arrows to navigate | enter to edit | q to quit"))
	case stateEditing:
		if m.isTextInput(m.cursor) {
			b.WriteString(helpStyle.Render("  type value | enter to confirm | esc to cancel | ctrl+u to clear"))
		} else {
			b.WriteString(helpStyle.Render("  j/k or arrows to pick | enter to select | esc to cancel"))
		}
	}
	b.WriteString("\n")

	return b.String()
}

func runInteractiveSetup() error {
	p := tea.NewProgram(initialTUIModel(), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	final := result.(tuiModel)
	if final.cancelled || !final.confirmed {
		return errors.New("cancelled")
	}
	final.apply()
	return nil
}

// apply copies the menu selections into the synthesize flags.
func (m tuiModel) apply() {
	flagText = m.items[idxText].value
	flagInput = m.items[idxInput].value
	flagOutput = m.items[idxOutput].value
	flagProvider = m.items[idxProvider].value
	flagLang = m.items[idxLanguage].value
	flagTLD = m.items[idxAccent].value
	flagVoice = m.items[idxVoice].value
	flagSlow = m.items[idxSpeed].value == "slow"
	flagSemitones, _ = strconv.ParseFloat(m.items[idxPitch].value, 64)
	flagNormalize = m.items[idxNormalize].value
}
