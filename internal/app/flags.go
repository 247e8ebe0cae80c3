// Package app wires configuration, the network stack and the session
// manager together for the sender and receiver commands.
package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blgpb/streaming-udp-video/internal/config"
)

// Flags are the command-line options shared by both commands.
type Flags struct {
	ConfigPath string
	Defaults   bool
	Log        config.LogConfig
	Stream     config.Stream
}

// Register adds the flags for role to cmd.
func (f *Flags) Register(cmd *cobra.Command, role config.Role) {
	fs := cmd.Flags()
	fs.StringVarP(&f.ConfigPath, "config", "c", "", "Multi-stream config file (.toml, .yaml)")
	fs.BoolVar(&f.Defaults, "defaults", false, "Run the three default camera streams (ports 4000, 5000, 6000)")

	fs.StringVar(&f.Log.Level, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.BoolVar(&f.Log.ToFile, "log-tofile", false, "Also write JSON logs to a rotated file")
	fs.StringVar(&f.Log.Filename, "log-filename", "./logs/"+config.Name+".log", "Log file path")

	s := &f.Stream
	fs.StringVar(&s.Name, "name", string(role), "Stream name")
	fs.StringVar(&s.Display, "display", "", "Display ID (defaults to the stream name)")
	fs.StringVar(&s.Transport, "transport", config.TransportUDP, "Channel transport (udp, webrtc)")
	fs.StringSliceVar(&s.ICEServers, "ice-server", nil, "STUN/TURN URL for the webrtc transport")
	fs.BoolVar(&s.ICELoopback, "ice-loopback", false, "Offer loopback ICE candidates (same-host webrtc streams)")
	fs.BoolVar(&s.Overlay, "overlay", false, "Burn a wall-clock timestamp into each frame")

	switch role {
	case config.RoleSender:
		fs.StringVar(&s.RemoteHost, "host", "127.0.0.1", "Receiver host")
		fs.IntVarP(&s.RemotePort, "port", "p", config.DefaultPorts[0], "Receiver port")
		fs.StringVar(&s.Source, "source", "camera:0", "Frame source: pattern, file:<path>, camera:<index>")
		fs.IntVarP(&s.Quality, "quality", "q", config.DefaultQuality, "JPEG quality (1-100)")
		fs.Float64Var(&s.Scale, "scale", config.DefaultScale, "Downscale factor in (0,1]")
		fs.IntVar(&s.FPS, "fps", config.DefaultFPS, "Capture frame rate")
		fs.IntVar(&s.MaxFPS, "max-fps", 0, "Cap on frames sent per second (0 = no cap)")
		fs.BoolVar(&s.Preview, "preview", false, "Show a local preview window")
		fs.DurationVar(&s.ClockOffset, "clock-offset", 0, "Offset added to overlay timestamps")
	case config.RoleReceiver:
		fs.IntVarP(&s.LocalPort, "port", "p", config.DefaultPorts[0], "Port to listen on")
		fs.DurationVar(&s.Timeout, "timeout", config.DefaultTimeout, "Show the fallback after this long without a frame")
		fs.StringVar(&s.Fallback, "fallback", "", "Fallback image (PNG or JPEG); a NO SIGNAL card if empty")
	}
}

// Resolve returns the log settings and the streams of role to run.
func (f *Flags) Resolve(cmd *cobra.Command, role config.Role) (config.LogConfig, []config.Stream, error) {
	logCfg := f.Log
	var streams []config.Stream

	switch {
	case f.ConfigPath != "":
		cfg, err := config.Load(f.ConfigPath)
		if err != nil {
			return logCfg, nil, err
		}
		if !cmd.Flags().Changed("log-level") {
			logCfg = cfg.Log
		}
		for _, s := range cfg.Streams {
			if s.Role == role {
				streams = append(streams, s)
			}
		}
		if len(streams) == 0 {
			return logCfg, nil, fmt.Errorf("%s has no %s streams", f.ConfigPath, role)
		}
	case f.Defaults:
		streams = config.DefaultStreams(role, f.Stream.RemoteHost)
	default:
		s := f.Stream
		s.Role = role
		s.ApplyDefaults(0)
		streams = []config.Stream{s}
	}

	logCfg.ApplyEnv()
	if err := config.ValidateStreams(streams); err != nil {
		return logCfg, nil, err
	}
	return logCfg, streams, nil
}
