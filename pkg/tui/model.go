// Package tui implements the terminal user interface.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/halcyon-audio/metrocore/pkg/metrotime"
	"github.com/halcyon-audio/metrocore/pkg/orchestrator"
	"github.com/halcyon-audio/metrocore/pkg/peersync"
	"github.com/halcyon-audio/metrocore/pkg/pitch"
	"github.com/halcyon-audio/metrocore/pkg/preset"
)

// View selects which of the two panels is on screen.
type View int

const (
	ViewMetronome View = iota
	ViewTuner
)

// activity is the single event type fed back from the Orchestrator's
// Observer callbacks into the bubbletea event loop, carrying whichever
// field is relevant for the activity that occurred.
type activity struct {
	kind string // "beat", "state", "pitch"

	bar       uint64
	beat      uint32
	accent    bool
	audioTime float64

	cfg     *metrotime.Config
	playing bool

	reading pitch.Reading
	note    pitch.NoteHypothesis
	cents   float64
	acc     pitch.Accuracy
}

// Model is the bubbletea model driving the metronome/tuner display. It
// holds no timing state of its own: everything it renders is either
// pushed to it by the Orchestrator's Observer callbacks or read back
// from Orchestrator.Snapshot.
type Model struct {
	orch         *orchestrator.Orchestrator
	presets      *preset.Store
	presetPath   string
	peer         *peersync.Peer

	activityCh chan activity

	Width    int
	Height   int
	Active   View
	ShowHelp bool

	BPM                int
	TimeSignatureBeats int
	TimeSignatureUnit  int
	AccentPattern      []bool
	SubdivisionEnabled bool
	Playing            bool

	LastBar    uint64
	LastBeat   uint32
	LastAccent bool

	PitchReading pitch.Reading
	PitchNote    pitch.NoteHypothesis
	PitchCents   float64
	PitchAcc     pitch.Accuracy
	HasPitch     bool

	StatusMsg string
}

// NewModel wires a Model to orch's Observer surface. presets/presetPath
// may be nil/"" when preset persistence is unavailable.
func NewModel(orch *orchestrator.Orchestrator, presets *preset.Store, presetPath string) Model {
	ch := make(chan activity, 64)

	orch.RegisterObserver(orchestrator.Observer{
		OnBeat: func(bar uint64, beat uint32, accent bool, audioTime float64) {
			pushActivity(ch, activity{kind: "beat", bar: bar, beat: beat, accent: accent, audioTime: audioTime})
		},
		OnStateChange: func(cfg *metrotime.Config, playing bool) {
			pushActivity(ch, activity{kind: "state", cfg: cfg, playing: playing})
		},
		OnPitch: func(reading pitch.Reading, note pitch.NoteHypothesis, centOffset float64, accuracy pitch.Accuracy) {
			pushActivity(ch, activity{kind: "pitch", reading: reading, note: note, cents: centOffset, acc: accuracy})
		},
	})

	snap := orch.Snapshot()
	return Model{
		orch:               orch,
		presets:            presets,
		presetPath:         presetPath,
		activityCh:         ch,
		Width:              100,
		Height:             30,
		BPM:                snap.BPM,
		TimeSignatureBeats: snap.TimeSignatureBeats,
		TimeSignatureUnit:  snap.TimeSignatureUnit,
		AccentPattern:      snap.AccentPattern,
		SubdivisionEnabled: snap.SubdivisionEnabled,
	}
}

// pushActivity drops the event rather than blocking the scheduler or
// capture timeline when the UI falls behind; staleness here never
// affects audio timing, only the display.
func pushActivity(ch chan activity, a activity) {
	select {
	case ch <- a:
	default:
	}
}

// AttachPeer wires remote sync into the model so the footer can show
// reachability.
func (m *Model) AttachPeer(p *peersync.Peer) {
	m.peer = p
	m.orch.AttachPeer(p)
}

func waitForActivity(ch chan activity) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, waitForActivity(m.activityCh))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case activity:
		m.applyActivity(msg)
		return m, waitForActivity(m.activityCh)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) applyActivity(a activity) {
	switch a.kind {
	case "beat":
		m.LastBar = a.bar
		m.LastBeat = a.beat
		m.LastAccent = a.accent
	case "state":
		m.Playing = a.playing
		if a.cfg != nil {
			m.BPM = a.cfg.BPM
			m.TimeSignatureBeats = a.cfg.TimeSignature.BeatsPerBar
			m.TimeSignatureUnit = int(a.cfg.TimeSignature.BeatUnit)
			m.AccentPattern = append([]bool(nil), a.cfg.AccentPattern...)
			m.SubdivisionEnabled = a.cfg.Subdivision != metrotime.SubdivisionNone
		}
	case "pitch":
		m.PitchReading = a.reading
		m.PitchNote = a.note
		m.PitchCents = a.cents
		m.PitchAcc = a.acc
		m.HasPitch = true
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.orch.Stop()
		return m, tea.Quit

	case "h", "f1":
		m.ShowHelp = !m.ShowHelp

	case "tab":
		if m.Active == ViewMetronome {
			m.Active = ViewTuner
		} else {
			m.Active = ViewMetronome
		}

	case " ":
		m.orch.Toggle()

	case "up":
		m.orch.SetBPM(m.BPM + 1)
	case "down":
		m.orch.SetBPM(m.BPM - 1)
	case "pgup":
		m.orch.SetBPM(m.BPM + 10)
	case "pgdown":
		m.orch.SetBPM(m.BPM - 10)

	case "t":
		if bpm, ok := m.orch.Tap(); ok {
			m.StatusMsg = fmt.Sprintf("tap tempo: %d bpm", bpm)
		} else {
			m.StatusMsg = "tap again to estimate tempo"
		}

	case "d":
		if m.SubdivisionEnabled {
			m.orch.SetSubdivision(metrotime.SubdivisionNone)
		} else {
			m.orch.SetSubdivision(metrotime.SubdivisionEighth)
		}

	case "1":
		m.orch.ApplyPreset(metrotime.PresetStandard)
	case "2":
		m.orch.ApplyPreset(metrotime.PresetBackbeat)
	case "3":
		m.orch.ApplyPreset(metrotime.PresetDjent)
	case "4":
		m.orch.ApplyPreset(metrotime.PresetAllAccent)

	case "s":
		m.saveCurrentAsPreset()
	}

	return m, nil
}

func (m *Model) saveCurrentAsPreset() {
	if m.presets == nil {
		m.StatusMsg = "preset storage unavailable"
		return
	}
	snap := m.orch.Snapshot()
	ts, err := metrotime.NewTimeSignature(snap.TimeSignatureBeats, metrotime.BeatUnit(snap.TimeSignatureUnit))
	if err != nil {
		m.StatusMsg = "could not save preset: " + err.Error()
		return
	}
	cfg := &metrotime.Config{
		BPM:           snap.BPM,
		TimeSignature: ts,
		AccentPattern: metrotime.AccentPattern(append([]bool(nil), snap.AccentPattern...)),
		Subdivision:   metrotime.SubdivisionFromWire(snap.SubdivisionEnabled, snap.SubdivisionType),
	}
	p := preset.NewPreset(fmt.Sprintf("Preset %d", len(m.presets.Presets)+1), cfg)
	m.presets.Add(p)
	if m.presetPath != "" {
		if err := preset.Save(m.presetPath, m.presets); err != nil {
			m.StatusMsg = "save failed: " + err.Error()
			return
		}
	}
	m.StatusMsg = "saved as " + p.Name
}

// View implements tea.Model.
func (m Model) View() string {
	if m.ShowHelp {
		return m.helpView()
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n\n")

	if m.Active == ViewTuner {
		b.WriteString(m.tunerView())
	} else {
		b.WriteString(m.metronomeView())
	}

	b.WriteString("\n")
	b.WriteString(m.footerView())
	return b.String()
}

func (m Model) headerView() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).Render("METROCORE")

	status := "STOPPED"
	if m.Playing {
		status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("PLAYING")
	}

	peerInfo := ""
	if m.peer != nil {
		reach := "unreachable"
		if m.peer.IsReachable() {
			reach = "synced"
		}
		peerInfo = " │ peer:" + reach
	}

	return fmt.Sprintf("%s │ %d BPM │ %d/%d │ %s%s", title, m.BPM, m.TimeSignatureBeats, m.TimeSignatureUnit, status, peerInfo)
}

func (m Model) metronomeView() string {
	var parts []string
	for i, accent := range m.AccentPattern {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		switch {
		case uint32(i) == m.LastBeat && accent:
			style = style.Foreground(lipgloss.Color("9")).Bold(true)
		case uint32(i) == m.LastBeat:
			style = style.Foreground(lipgloss.Color("10")).Bold(true)
		case accent:
			style = style.Foreground(lipgloss.Color("11"))
		}
		glyph := "o"
		if accent {
			glyph = "O"
		}
		parts = append(parts, style.Render(glyph))
	}

	beats := strings.Join(parts, "  ")
	sub := "subdivision off"
	if m.SubdivisionEnabled {
		sub = "subdivision on"
	}
	return fmt.Sprintf("  %s\n\n  bar %d  beat %d  (%s)", beats, m.LastBar, m.LastBeat+1, sub)
}

func (m Model) tunerView() string {
	if !m.HasPitch {
		return "  listening for a steady pitch..."
	}

	noteStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	accStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	switch m.PitchAcc {
	case pitch.AccuracyInTune:
		accStyle = accStyle.Foreground(lipgloss.Color("10"))
	case pitch.AccuracyClose:
		accStyle = accStyle.Foreground(lipgloss.Color("11"))
	case pitch.AccuracyFar:
		accStyle = accStyle.Foreground(lipgloss.Color("9"))
	}

	return fmt.Sprintf("  %s%d   %.1f Hz   %+.0f cents   %s",
		noteStyle.Render(m.PitchNote.Name), m.PitchNote.Octave,
		m.PitchReading.FrequencyHz, m.PitchCents,
		accStyle.Render(m.PitchAcc.String()))
}

func (m Model) footerView() string {
	keys := " [Space]Play/Stop [Tab]View [↑↓]BPM±1 [PgUp/Dn]BPM±10 [T]Tap [D]Subdiv [1-4]Preset [S]Save [H]Help [Q]Quit"
	footer := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(keys)
	if m.StatusMsg != "" {
		footer += lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("\n " + m.StatusMsg)
	}
	return footer
}

func (m Model) helpView() string {
	help := `
╔══════════════════════════════════════════════════════════════════╗
║                         METROCORE HELP                            ║
╠══════════════════════════════════════════════════════════════════╣
║ TRANSPORT                                                         ║
║   Space     Play/Stop            Tab       Switch metronome/tuner ║
║   ↑/↓       BPM ±1                PgUp/PgDn BPM ±10               ║
║   T         Tap tempo             D         Toggle subdivision    ║
║                                                                    ║
║ PRESETS                                                           ║
║   1         Standard accent       2         Backbeat accent       ║
║   3         Djent accent          4         All-accent            ║
║   S         Save current as preset                                ║
║                                                                    ║
║                              [H] Close help                       ║
╚══════════════════════════════════════════════════════════════════╝
`
	return lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Render(help)
}
