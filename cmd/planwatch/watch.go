package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/82deutschmark/PlanExe-sub001/planstream"
	"github.com/82deutschmark/PlanExe-sub001/protocol"
	"github.com/82deutschmark/PlanExe-sub001/transport"
	"github.com/82deutschmark/PlanExe-sub001/transport/sse"
	"github.com/82deutschmark/PlanExe-sub001/transport/ws"
)

var (
	watchTransport string
	watchFlushMs   int
	watchReasoning bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <plan-id>",
	Short: "Follow a plan's generation stream until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		planID := args[0]
		log := newLogger()

		fileCfg, err := loadFileConfig()
		if err != nil {
			return err
		}
		server := resolveServer(fileCfg)

		flushMs := watchFlushMs
		if !cmd.Flags().Changed("flush-ms") && fileCfg.FlushMs > 0 {
			flushMs = fileCfg.FlushMs
		}
		mode := watchTransport
		if !cmd.Flags().Changed("transport") && fileCfg.Transport != "" {
			mode = fileCfg.Transport
		}

		tr, err := newTransport(mode, server, log)
		if err != nil {
			return err
		}

		session := planstream.NewSession(tr,
			planstream.WithFlushInterval(time.Duration(flushMs)*time.Millisecond),
			planstream.WithLogger(log),
		)
		defer session.Close()

		result := make(chan error, 1)
		handlers := planstream.Handlers{
			OnStatus: func(msg protocol.StatusMessage, class protocol.StatusClass) {
				line := fmt.Sprintf("status: %s", msg.Status)
				if msg.ProgressPercentage != nil {
					line += fmt.Sprintf(" (%d%%)", *msg.ProgressPercentage)
				}
				if msg.StallWarning {
					line += " [stalled]"
				}
				fmt.Fprintln(os.Stderr, line)
			},
			OnLog: func(msg protocol.LogMessage) {
				log.Debug("pipeline", "message", msg.Message)
			},
			OnInteractionStart: func(id protocol.InteractionID, stage string, p protocol.StartPayload) {
				fmt.Fprintf(os.Stderr, "\n── %s (interaction %s) ──\n", stage, id)
			},
			OnTextDelta: func(_ protocol.InteractionID, delta string) {
				fmt.Print(delta)
			},
			OnReasoningDelta: func(_ protocol.InteractionID, delta string) {
				if watchReasoning {
					fmt.Fprintf(os.Stderr, "[reasoning] %s\n", delta)
				}
			},
			OnFinal: func(id protocol.InteractionID, p protocol.FinalPayload) {
				fmt.Println()
				if p.Usage != nil {
					log.Debug("interaction finished", "interaction_id", id,
						"input_tokens", p.Usage.InputTokens, "output_tokens", p.Usage.OutputTokens)
				}
			},
		}

		session.Subscribe(func(snap planstream.Snapshot) {
			if snap.Status.Terminal() {
				select {
				case result <- snap.Err:
				default:
				}
			}
		})

		if err := session.Start(cmd.Context(), planID, handlers); err != nil {
			return fmt.Errorf("start stream: %w", err)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case err := <-result:
			if err != nil {
				return fmt.Errorf("plan failed: %w", err)
			}
			fmt.Fprintln(os.Stderr, "plan completed")
			return nil
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "interrupted")
			return nil
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchTransport, "transport", "ws", "Stream transport: ws or sse")
	watchCmd.Flags().IntVar(&watchFlushMs, "flush-ms", 50, "Snapshot coalescing window in milliseconds (0 = synchronous)")
	watchCmd.Flags().BoolVar(&watchReasoning, "reasoning", false, "Print reasoning summary deltas to stderr")
}

func newTransport(mode, server string, log *slog.Logger) (transport.Transport, error) {
	switch mode {
	case "ws":
		return ws.New(server, ws.WithLogger(log)), nil
	case "sse":
		return sse.New(server, sse.WithLogger(log)), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want ws or sse)", mode)
	}
}
