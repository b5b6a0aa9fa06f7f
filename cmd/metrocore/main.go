package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/hashicorp/mdns"

	"github.com/halcyon-audio/metrocore/pkg/audioio"
	"github.com/halcyon-audio/metrocore/pkg/clock"
	"github.com/halcyon-audio/metrocore/pkg/haptic"
	"github.com/halcyon-audio/metrocore/pkg/orchestrator"
	"github.com/halcyon-audio/metrocore/pkg/peersync"
	"github.com/halcyon-audio/metrocore/pkg/preset"
	"github.com/halcyon-audio/metrocore/pkg/tui"
)

func main() {
	bpm := flag.Int("bpm", 0, "starting tempo in BPM (0 keeps the saved/default tempo)")
	countIn := flag.Int("count-in", 0, "number of silent count-in bars before the first audible beat")
	presetPath := flag.String("presets", defaultPresetPath(), "path to the preset/tuner YAML store")
	listen := flag.String("listen", "", "address to accept an inbound peer sync connection on (e.g. :7777)")
	dial := flag.String("dial", "", "websocket URL of a peer to sync with (e.g. ws://peer.local:7777/sync)")
	deviceID := flag.String("device-id", "", "stable identifier advertised to peers (random if empty)")
	advertise := flag.Bool("advertise", false, "advertise this device on the LAN via mDNS while --listen is active")
	discoverSeconds := flag.Int("discover", 0, "browse the LAN via mDNS for this many seconds and dial the first peer found, instead of --dial")
	flag.Parse()

	logger := log.New(os.Stderr)

	if err := os.MkdirAll(filepath.Dir(*presetPath), 0o755); err != nil {
		logger.Warn("could not create preset directory", "err", err)
	}

	store, err := preset.Load(*presetPath)
	if err != nil {
		logger.Fatal("loading preset store", "err", err)
	}

	var out audioio.Output
	orch := orchestrator.New(clock.NewMonotonic(), &out, haptic.NewEngine(haptic.Noop{}), nil, logger)

	if p, ok := lastUsedConfig(store); ok {
		orch.LoadConfig(p.ToConfig())
	}
	if *bpm > 0 {
		orch.SetBPM(*bpm)
	}

	id := *deviceID
	if id == "" {
		id = uuid.NewString()
	}

	dialTarget := *dial
	if dialTarget == "" && *discoverSeconds > 0 {
		peer, ok := discoverPeer(*discoverSeconds, logger)
		if ok {
			dialTarget = fmt.Sprintf("ws://%s:%d/sync", peer.Host, peer.Port)
		}
	}

	if err := wirePeer(orch, id, *listen, dialTarget, logger); err != nil {
		logger.Warn("peer sync unavailable", "err", err)
	}

	if *advertise && *listen != "" {
		if mdnsServer, err := advertiseSelf(id, *listen, logger); err != nil {
			logger.Warn("mdns advertise unavailable", "err", err)
		} else {
			defer mdnsServer.Shutdown()
		}
	}

	model := tui.NewModel(orch, store, *presetPath)

	if *countIn > 0 {
		if err := orch.StartWithCountIn(*countIn); err != nil {
			logger.Fatal("starting transport", "err", err)
		}
	}

	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "metrocore: %v\n", err)
		os.Exit(1)
	}

	orch.Stop()
	if err := preset.Save(*presetPath, store); err != nil {
		logger.Warn("saving preset store on exit", "err", err)
	}
}

func defaultPresetPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "metrocore-presets.yaml"
	}
	return filepath.Join(dir, "metrocore", "presets.yaml")
}

func lastUsedConfig(store *preset.Store) (*preset.Preset, bool) {
	if store.LastUsedPresetID == "" {
		return nil, false
	}
	p, ok := store.Find(store.LastUsedPresetID)
	if !ok {
		return nil, false
	}
	return &p, true
}

// discoverPeer browses the LAN via mDNS for timeoutSeconds and returns the
// first peer found, so --discover can stand in for the user typing a
// --dial address by hand.
func discoverPeer(timeoutSeconds int, logger *log.Logger) (peersync.PeerAddress, bool) {
	found, err := peersync.Discover(timeoutSeconds)
	if err != nil {
		logger.Warn("mdns discovery failed", "err", err)
		return peersync.PeerAddress{}, false
	}
	if len(found) == 0 {
		logger.Warn("mdns discovery found no peers")
		return peersync.PeerAddress{}, false
	}
	return found[0], true
}

// advertiseSelf registers deviceID on the LAN under listen's port so a
// peer running --discover can find this device without a hand-typed
// address. The caller must shut down the returned server on exit.
func advertiseSelf(deviceID, listen string, logger *log.Logger) (*mdns.Server, error) {
	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return nil, fmt.Errorf("parse --listen for mdns port: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parse --listen port for mdns: %w", err)
	}
	server, err := peersync.Advertise(deviceID, port)
	if err != nil {
		return nil, err
	}
	logger.Info("advertising on LAN via mdns", "device-id", deviceID, "port", port)
	return server, nil
}

// wirePeer establishes the optional paired-device sync channel: listen
// accepts inbound connections in the background, dial connects
// outbound immediately. Only one of the two should be set; dial takes
// precedence if both are. Neither call blocks the TUI from starting.
func wirePeer(orch *orchestrator.Orchestrator, deviceID, listen, dial string, logger *log.Logger) error {
	attach := func(channel peersync.Channel) {
		peer := peersync.NewPeer(deviceID, channel, orch.Snapshot, orch.ApplyRemoteSnapshot, orch.ApplyRemoteCommand)
		orch.AttachPeer(peer)
		if wc, ok := channel.(*peersync.WebsocketChannel); ok {
			go func() {
				if err := peersync.RunReceiveLoop(wc, peer.HandleInbound); err != nil {
					logger.Warn("peer receive loop ended", "err", err)
				}
			}()
		}
	}

	switch {
	case dial != "":
		c, err := peersync.DialWebsocketChannel(dial)
		if err != nil {
			return fmt.Errorf("dial peer: %w", err)
		}
		attach(c)

	case listen != "":
		mux := http.NewServeMux()
		mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
			c, err := peersync.AcceptWebsocketChannel(w, r)
			if err != nil {
				logger.Warn("peer upgrade failed", "err", err)
				return
			}
			attach(c)
		})
		go func() {
			if err := http.ListenAndServe(listen, mux); err != nil {
				logger.Warn("peer listener exited", "err", err)
			}
		}()
	}

	return nil
}
