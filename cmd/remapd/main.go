// remapd is the standalone host for the mapping engine: it opens MIDI
// and OSC devices, loads compartment presets for each configured engine
// instance and drives the whole pipeline off a fixed clock that stands in
// for the audio callback.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hypebeast/go-osc/osc"
	gomidi "gitlab.com/gomidi/midi/v2"
	"golang.org/x/sync/errgroup"

	"github.com/tilde-audio/remap/internal/config"
	"github.com/tilde-audio/remap/internal/engine"
	"github.com/tilde-audio/remap/internal/mapping"
	"github.com/tilde-audio/remap/internal/midi"
	"github.com/tilde-audio/remap/internal/preset"
	"github.com/tilde-audio/remap/internal/source"
	"github.com/tilde-audio/remap/internal/target"
)

func main() {
	var (
		configPath = flag.String("config", "", "config file path (default: user config dir)")
		listPorts  = flag.Bool("list-ports", false, "list MIDI ports and exit")
		logLevel   = flag.String("log-level", "", "override configured log level")
	)
	flag.Parse()

	if err := run(*configPath, *listPorts, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath string, listPorts bool, logLevelOverride string) error {
	manager := midi.NewManager()
	defer manager.Close()

	if listPorts {
		fmt.Println("Inputs:")
		for _, name := range manager.InPortNames() {
			fmt.Println("  ", name)
		}
		fmt.Println("Outputs:")
		for _, name := range manager.OutPortNames() {
			fmt.Println("  ", name)
		}
		return nil
	}

	if configPath == "" {
		var err error
		configPath, err = config.DefaultPath()
		if err != nil {
			return err
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	levelStr := cfg.LogLevel
	if logLevelOverride != "" {
		levelStr = logLevelOverride
	}
	level, err := parseLogLevel(levelStr)
	if err != nil {
		return err
	}
	log := setupLogger(level)
	log.Info("starting remapd", "config", configPath, "instances", len(cfg.Instances))

	if len(cfg.Instances) == 0 {
		return fmt.Errorf("no instances configured in %s", configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	hook := engine.NewAudioHook(log)
	backbone := engine.NewBackbone(log)
	project := newProject(log)

	var instances []*instance
	for _, ic := range cfg.Instances {
		inst, err := setupInstance(ctx, g, log, ic, manager, hook, backbone, project)
		if err != nil {
			return fmt.Errorf("instance %s: %w", ic.ID, err)
		}
		instances = append(instances, inst)
	}

	cycle := time.Duration(cfg.CycleMillis) * time.Millisecond
	g.Go(func() error {
		ticker := time.NewTicker(cycle)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				shutdown(hook, backbone, instances)
				return nil
			case now := <-ticker.C:
				project.advance(cycle.Seconds())
				hook.Poll(drainInputs(manager), now)
				for _, inst := range instances {
					inst.adapter.Poll()
					inst.main.Run(now)
				}
			}
		}
	})

	return g.Wait()
}

// instance bundles one engine instance's moving parts.
type instance struct {
	main    *engine.MainProcessor
	adapter *engine.ControlSurfaceAdapter
}

func setupInstance(ctx context.Context, g *errgroup.Group, log *slog.Logger, ic config.InstanceConfig, manager *midi.Manager, hook *engine.AudioHook, backbone *engine.Backbone, project *project) (*instance, error) {
	if ic.MidiInput != "" {
		if err := manager.OpenInput(ic.MidiInput); err != nil {
			return nil, err
		}
	}
	if ic.MidiOutput != "" {
		if err := manager.OpenOutput(ic.MidiOutput); err != nil {
			return nil, err
		}
		hook.RegisterOutput(ic.MidiOutput, &midiOut{log: log, send: manager.Sender(ic.MidiOutput)})
	}

	var oscOut target.OscSender
	if ic.OscSend != "" {
		client, err := newOscClient(ic.OscSend)
		if err != nil {
			return nil, err
		}
		oscOut = &oscSender{log: log, client: client}
	}

	mp := engine.NewMainProcessor(ic.ID, log, hook, backbone, project, ic.MidiOutput, oscOut)
	mp.SetInputDevice(ic.MidiInput)

	var oscIn chan osc.Packet
	if ic.OscListen != "" {
		oscIn = make(chan osc.Packet, 256)
		if err := listenOsc(ctx, g, log, ic.OscListen, oscIn); err != nil {
			return nil, err
		}
	}
	adapter := engine.NewControlSurfaceAdapter(log, mp, oscIn)

	if err := loadCompartment(log, mp, ic.ControllerPreset, mapping.CompartmentController); err != nil {
		return nil, err
	}
	if err := loadCompartment(log, mp, ic.MainPreset, mapping.CompartmentMain); err != nil {
		return nil, err
	}

	backbone.Register(mp)
	hook.AddProcessor(mp.RealTime())
	if ic.ClaimMatchedEvents || ic.UpperFloor {
		mp.EnqueueSessionCommand(engine.UpdateSettings{
			ControlOn:          true,
			FeedbackOn:         true,
			ClaimMatchedEvents: ic.ClaimMatchedEvents,
			UpperFloor:         ic.UpperFloor,
		})
	}
	mp.EnqueueControl(source.NewMetaMessage(source.MetaEvent{Kind: source.MetaInstanceStart}))
	return &instance{main: mp, adapter: adapter}, nil
}

func loadCompartment(log *slog.Logger, mp *engine.MainProcessor, path string, c mapping.Compartment) error {
	if path == "" {
		return nil
	}
	rec, err := preset.LoadFile(path)
	if err != nil {
		return err
	}
	compiled, err := rec.Compile(c)
	if err != nil {
		return fmt.Errorf("preset %s: %w", path, err)
	}
	mp.EnqueueSessionCommand(engine.UpdateAllMappings{
		Compartment: c,
		Mappings:    compiled.Mappings,
		Groups:      compiled.Groups,
	})
	for idx, v := range compiled.Parameters {
		mp.EnqueueParameter(engine.ParameterTask{Index: c.ParamOffset() + idx, Value: v})
	}
	log.Info("loaded preset", "path", path, "compartment", c,
		"mappings", len(compiled.Mappings), "groups", len(compiled.Groups))
	return nil
}

func shutdown(hook *engine.AudioHook, backbone *engine.Backbone, instances []*instance) {
	// Suspension turns every active LED off; one final hook poll flushes
	// the resulting writes before the ports close.
	for _, inst := range instances {
		backbone.Deregister(inst.main)
		inst.main.Suspend()
		hook.RemoveProcessor(inst.main.RealTime())
	}
	hook.Poll(nil, time.Now())
}

func drainInputs(manager *midi.Manager) []engine.DeviceEvents {
	drained := manager.Drain()
	if len(drained) == 0 {
		return nil
	}
	out := make([]engine.DeviceEvents, len(drained))
	for i, d := range drained {
		out[i] = engine.DeviceEvents{Device: d.Device, Messages: d.Messages}
	}
	return out
}

// midiOut adapts a port sender to the engine's MidiSender.
type midiOut struct {
	log  *slog.Logger
	send func(gomidi.Message) error
}

func (o *midiOut) SendMidi(msg gomidi.Message) {
	if o.send == nil {
		return
	}
	if err := o.send(msg); err != nil {
		o.log.Warn("midi send failed", "error", err)
	}
}

// oscSender adapts an OSC client to the engine's OscSender.
type oscSender struct {
	log    *slog.Logger
	client *osc.Client
}

func (o *oscSender) SendOsc(msg *osc.Message) {
	if err := o.client.Send(msg); err != nil {
		o.log.Warn("osc send failed", "error", err)
	}
}

func newOscClient(addr string) (*osc.Client, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid osc send address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid osc send port %q: %w", portStr, err)
	}
	return osc.NewClient(host, port), nil
}

// listenOsc receives OSC packets on a UDP socket and feeds them into the
// adapter's input channel. A full channel drops the packet.
func listenOsc(ctx context.Context, g *errgroup.Group, log *slog.Logger, addr string, out chan<- osc.Packet) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("osc listen on %s: %w", addr, err)
	}
	log.Info("listening for osc", "addr", addr)
	server := &osc.Server{}
	g.Go(func() error {
		<-ctx.Done()
		return conn.Close()
	})
	g.Go(func() error {
		for {
			pkt, err := server.ReceivePacket(conn)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Warn("osc receive failed", "error", err)
				continue
			}
			select {
			case out <- pkt:
			default:
			}
		}
	})
	return nil
}
