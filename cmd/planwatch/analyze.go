package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/82deutschmark/PlanExe-sub001/config"
	"github.com/82deutschmark/PlanExe-sub001/planstream"
	"github.com/82deutschmark/PlanExe-sub001/protocol"
	"github.com/82deutschmark/PlanExe-sub001/schema"
	"github.com/82deutschmark/PlanExe-sub001/transport/sse"
)

var (
	analyzePrompt     string
	analyzeContext    string
	analyzeModel      string
	analyzeStructured bool
)

// analysisReport is the structured output shape requested when
// --structured is set.
type analysisReport struct {
	Summary     string   `json:"summary"`
	KeyFindings []string `json:"key_findings,omitempty"`
	Risks       []string `json:"risks,omitempty"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <task-id>",
	Short: "Run an ad-hoc streaming analysis against the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID := args[0]
		log := newLogger()

		fileCfg, err := loadFileConfig()
		if err != nil {
			return err
		}
		server := resolveServer(fileCfg)

		modelKey := analyzeModel
		if modelKey == "" {
			modelKey = fileCfg.ModelKey
		}
		if modelKey == "" {
			remote, err := config.NewService(server).Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("resolve default model: %w", err)
			}
			modelKey = remote.DefaultModel
		}

		req := sse.AnalysisRequest{
			ModelKey: modelKey,
			Prompt:   analyzePrompt,
			Context:  analyzeContext,
		}
		if analyzeStructured {
			entry, err := schema.Reflect[analysisReport]("analysis_report")
			if err != nil {
				return fmt.Errorf("build output schema: %w", err)
			}
			req.Schema = entry
		}

		tr := sse.New(server, sse.WithLogger(log), sse.WithAnalysisSession(req))
		session := planstream.NewSession(tr, planstream.WithLogger(log))
		defer session.Close()

		result := make(chan error, 1)
		handlers := planstream.Handlers{
			OnTextDelta: func(_ protocol.InteractionID, delta string) {
				if !analyzeStructured {
					fmt.Print(delta)
				}
			},
			OnJSONDelta: func(_ protocol.InteractionID, delta string) {
				if analyzeStructured {
					fmt.Print(delta)
				}
			},
			OnFinal: func(_ protocol.InteractionID, p protocol.FinalPayload) {
				fmt.Println()
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

		log.Debug("starting analysis", "task_id", taskID, "model", modelKey, "structured", analyzeStructured)
		if err := session.Start(cmd.Context(), taskID, handlers); err != nil {
			return fmt.Errorf("start analysis: %w", err)
		}

		select {
		case err := <-result:
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}
			return nil
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(10 * time.Minute):
			fmt.Fprintln(os.Stderr, "analysis timed out")
			return fmt.Errorf("analysis timed out")
		}
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzePrompt, "prompt", "", "Analysis instructions (required)")
	analyzeCmd.Flags().StringVar(&analyzeContext, "context", "", "Supplementary context prepended to the prompt")
	analyzeCmd.Flags().StringVar(&analyzeModel, "model", "", "LLM model key (default: server's default model)")
	analyzeCmd.Flags().BoolVar(&analyzeStructured, "structured", false, "Request structured JSON output")
	analyzeCmd.MarkFlagRequired("prompt")
}
