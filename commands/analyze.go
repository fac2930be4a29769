package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-claude-voice/internal/application/voice"
	"github.com/penwyp/go-claude-voice/internal/core/model"
	"github.com/penwyp/go-claude-voice/internal/core/pipeline"
	"github.com/penwyp/go-claude-voice/internal/util"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	analyzeOutput  string
	analyzeNoColor bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file...]",
	Short: "Show how captured terminal output would be narrated",
	Long: `Runs captured terminal output (for example from script(1)) through the filter
pipeline without speaking, and reports the verdict for every line together with
the utterances that would have been spoken. Reads stdin when no file is given.`,
	RunE: runAnalyzeCmd,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "table",
		"Output format (table, json)")
	analyzeCmd.Flags().BoolVar(&analyzeNoColor, "no-color", false,
		"Disable colors in table output")
}

// LineReport is the analysis of one normalized line.
type LineReport struct {
	Line     string `json:"line"`
	Action   string `json:"action"`
	Verdict  string `json:"verdict,omitempty"`
	Approval bool   `json:"approval"`
}

// AnalyzeReport is the result of an analyze run.
type AnalyzeReport struct {
	Lines      []LineReport `json:"lines"`
	Utterances []string     `json:"utterances"`
}

// collectingQueue records utterances instead of speaking them.
type collectingQueue struct {
	utterances []model.Utterance
}

func (q *collectingQueue) Enqueue(u model.Utterance) {
	q.utterances = append(q.utterances, u)
}

func (q *collectingQueue) CancelAll() {}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	initLogging(true)
	defer util.CloseLogger()

	if analyzeOutput != "table" && analyzeOutput != "json" {
		return fmt.Errorf("invalid output format '%s': must be either 'table' or 'json'", analyzeOutput)
	}

	var inputs []io.Reader
	for _, path := range args {
		f, err := os.Open(expandPath(path))
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		inputs = append(inputs, f)
	}
	if len(inputs) == 0 {
		inputs = append(inputs, cmd.InOrStdin())
	}

	report, err := analyze(io.MultiReader(inputs...))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if analyzeOutput == "json" {
		data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	color := !analyzeNoColor && isTerminal(out)
	writeReportTable(out, report, color)
	return nil
}

// analyze feeds raw terminal bytes through a non-speaking pipeline.
func analyze(r io.Reader) (*AnalyzeReport, error) {
	config := newVoiceConfig()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	classifier, err := voice.LoadClassifier(config.PatternsFile)
	if err != nil {
		return nil, err
	}

	report := &AnalyzeReport{}
	queue := &collectingQueue{}
	p := pipeline.New(pipeline.Config{
		ApprovalTimeout: config.ApprovalTimeout,
		Dedup:           config.DedupConfig(),
		AnnouncePrompts: config.AnnouncePrompts,
	}, classifier, queue, pipeline.WithDecisionHook(func(d pipeline.Decision) {
		lr := LineReport{
			Line:     d.Line,
			Action:   d.Action.String(),
			Approval: d.Approval,
		}
		if d.Action == pipeline.ActionClassified {
			lr.Verdict = d.Verdict.String()
		}
		report.Lines = append(report.Lines, lr)
	}))

	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			p.HandleChunk(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
	}
	p.Finish()

	for _, u := range queue.utterances {
		report.Utterances = append(report.Utterances, u.Text)
	}
	return report, nil
}

func writeReportTable(w io.Writer, report *AnalyzeReport, color bool) {
	fmt.Fprintln(w, util.FormatSectionTitle("Lines", color))
	fmt.Fprintf(w, "%s %s %s %s\n",
		util.PadRight("ACTION", 10), util.PadRight("VERDICT", 15), util.PadRight("APPR", 4), "LINE")
	for _, l := range report.Lines {
		appr := ""
		if l.Approval {
			appr = "yes"
		}
		fmt.Fprintf(w, "%s %s %s %s\n",
			util.PadRight(l.Action, 10),
			util.Colorize(util.PadRight(l.Verdict, 15), verdictColor(l.Verdict), color),
			util.PadRight(appr, 4),
			util.Preview(l.Line, 100))
	}

	fmt.Fprintf(w, "%d lines, %d content\n", len(report.Lines), lineCount(report, model.VerdictContent.String()))

	fmt.Fprintln(w)
	fmt.Fprintln(w, util.FormatSectionTitle(fmt.Sprintf("Utterances (%d)", len(report.Utterances)), color))
	for i, text := range report.Utterances {
		fmt.Fprintf(w, "%3d. %s\n", i+1, text)
	}
}

func verdictColor(verdict string) string {
	switch verdict {
	case model.VerdictContent.String():
		return util.ColorGreen
	case model.VerdictToolChatter.String():
		return util.ColorYellow
	case model.VerdictApprovalPrompt.String(), model.VerdictApprovalOption.String():
		return util.ColorRed
	case "":
		return ""
	default:
		return util.ColorGray
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func lineCount(report *AnalyzeReport, verdict string) int {
	n := 0
	for _, l := range report.Lines {
		if strings.EqualFold(l.Verdict, verdict) {
			n++
		}
	}
	return n
}
