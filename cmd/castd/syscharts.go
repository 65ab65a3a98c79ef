package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/ledcast/caster/internal/logging"
	"github.com/ledcast/caster/internal/obssample"
)

var sysChartsLog = logging.L("sys-charts")

var sysChartsCmd = &cobra.Command{
	Use:   "sys-charts",
	Short: "Sample host and cast health and emit periodic chart data",
	Long:  `Implements --run-sys-charts (spec.md §6): dials the control surface as a client, merges its per-cast stats and destinations with local host CPU/mem/net sampling, optionally restricted to --dev_list, and writes JSON snapshots to stdout or --file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		filePath, _ := cmd.Flags().GetString("file")
		dark, _ := cmd.Flags().GetBool("dark")
		devListRaw, _ := cmd.Flags().GetString("dev_list")
		intervalSec, _ := cmd.Flags().GetInt("interval")

		var devList []string
		if devListRaw != "" {
			for _, d := range strings.Split(devListRaw, ",") {
				d = strings.TrimSpace(d)
				if d != "" {
					devList = append(devList, d)
				}
			}
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return runSysCharts(ctx, cfg.ControlListenAddr, filePath, dark, devList, time.Duration(intervalSec)*time.Second)
	},
}

func init() {
	sysChartsCmd.Flags().String("file", "", "write each sample to this path instead of stdout")
	sysChartsCmd.Flags().Bool("dark", false, "suppress stdout output (only meaningful with --file)")
	sysChartsCmd.Flags().String("dev_list", "", "comma-separated destination IPs to restrict cast sampling to")
	sysChartsCmd.Flags().Int("interval", 2, "sample interval in seconds")
}

// remoteLister fetches per-cast stats from the control surface over its
// WebSocket wire protocol instead of holding a direct *cast.Controller, so
// sys-charts can run as a separate process from run. It does not satisfy
// obssample.Lister: the sampler is built without a Lister, and
// runSysCharts appends the list() results to each Sample's Casts itself.
type remoteLister struct {
	mu    chan struct{} // binary semaphore, guards conn use
	conn  *websocket.Conn
	addr  string
}

func dialControlSurface(addr string) (*remoteLister, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/control"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("sys-charts: dial control surface at %s: %w", addr, err)
	}
	rl := &remoteLister{mu: make(chan struct{}, 1), conn: conn, addr: addr}
	rl.mu <- struct{}{}
	return rl, nil
}

func (r *remoteLister) close() error {
	return r.conn.Close()
}

// list sends a "list" command and collects every "stats" event the control
// surface replies with until a short quiet period elapses.
func (r *remoteLister) list() ([]remoteCastSample, error) {
	<-r.mu
	defer func() { r.mu <- struct{}{} }()

	if err := r.conn.WriteJSON(struct {
		Verb string `json:"verb"`
	}{Verb: "list"}); err != nil {
		return nil, fmt.Errorf("sys-charts: send list command: %w", err)
	}

	var out []remoteCastSample
	r.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var evt struct {
			Type         string   `json:"type"`
			Cast         string   `json:"cast"`
			Destinations []string `json:"destinations"`
			Stats        *struct {
				State        string `json:"state"`
				TotalFrames  uint64 `json:"totalFrames"`
				TotalPackets uint64 `json:"totalPackets"`
			} `json:"stats"`
		}
		if err := r.conn.ReadJSON(&evt); err != nil {
			if websocket.IsUnexpectedCloseError(err) {
				return out, fmt.Errorf("sys-charts: control surface closed: %w", err)
			}
			// Read deadline expired: no more events queued for this round.
			break
		}
		if evt.Type != "stats" || evt.Stats == nil {
			continue
		}
		out = append(out, remoteCastSample{
			Name:         evt.Cast,
			State:        evt.Stats.State,
			TotalFrames:  evt.Stats.TotalFrames,
			TotalPackets: evt.Stats.TotalPackets,
			Destinations: evt.Destinations,
		})
	}
	return out, nil
}

type remoteCastSample struct {
	Name         string
	State        string
	TotalFrames  uint64
	TotalPackets uint64
	Destinations []string
}

func runSysCharts(ctx context.Context, controlAddr, filePath string, dark bool, devList []string, interval time.Duration) error {
	rl, err := dialControlSurface(controlAddr)
	if err != nil {
		return err
	}
	defer rl.close()

	devSet := make(map[string]struct{}, len(devList))
	for _, d := range devList {
		devSet[d] = struct{}{}
	}

	sampler := obssample.NewSampler(nil, devList)

	var out *os.File
	if filePath != "" {
		out, err = os.Create(filePath)
		if err != nil {
			return fmt.Errorf("sys-charts: open %s: %w", filePath, err)
		}
		defer out.Close()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sysChartsLog.Info("sampling started", "control_addr", controlAddr, "interval", interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			hostSample, err := sampler.Sample(ctx)
			if err != nil {
				sysChartsLog.Warn("host sample failed", logging.KeyError, err)
				continue
			}

			casts, err := rl.list()
			if err != nil {
				sysChartsLog.Warn("control surface list failed", logging.KeyError, err)
				continue
			}
			for _, c := range casts {
				if len(devSet) > 0 && !intersects(c.Destinations, devSet) {
					continue
				}
				hostSample.Casts = append(hostSample.Casts, obssample.CastSample{
					Name:         c.Name,
					State:        c.State,
					TotalFrames:  c.TotalFrames,
					TotalPackets: c.TotalPackets,
					Destinations: c.Destinations,
				})
			}

			emit(hostSample, out, dark)
		}
	}
}

func intersects(dests []string, devSet map[string]struct{}) bool {
	for _, d := range dests {
		if _, ok := devSet[d]; ok {
			return true
		}
	}
	return false
}

func emit(sample obssample.Sample, out *os.File, dark bool) {
	enc, err := json.Marshal(sample)
	if err != nil {
		sysChartsLog.Warn("marshal sample failed", logging.KeyError, err)
		return
	}

	if out != nil {
		out.Write(enc)
		out.Write([]byte("\n"))
	}
	if !dark {
		fmt.Println(string(enc))
	}
}
