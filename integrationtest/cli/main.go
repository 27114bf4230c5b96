// Package main provides an interactive CLI for exercising the
// recursion guard and the safety manager against a simulated
// investigation, with colored admission and verdict output.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/castellan/castellan"
	"github.com/castellan/castellan/guard"
	"github.com/castellan/castellan/safety"
)

// ANSI color codes
const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorWhite   = "\033[37m"
	colorBold    = "\033[1m"
	colorDim     = "\033[2m"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr,
			"%sError: %v%s\n",
			colorRed, err, colorReset)
		os.Exit(1)
	}
}

// session holds the live components plus the simulated signal
// fields that are not derivable from the execution ledger.
type session struct {
	guard   *guard.RecursionGuard
	manager *safety.Manager

	investigationID string
	threadID        string

	loops     int
	riskScore float64
	errors    int
}

func run() error {
	rl, err := readline.New(
		colorCyan + "castellan> " + colorReset)
	if err != nil {
		return fmt.Errorf(
			"failed to create readline: %w", err)
	}
	defer rl.Close()

	s := &session{
		guard:   guard.New(guard.DefaultConfig()),
		manager: safety.NewManager(),
	}
	s.newInvestigation()

	printHelp()
	fmt.Println()

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				fmt.Printf(
					"\n%sGoodbye!%s\n",
					colorGreen, colorReset)
				return nil
			}
			return fmt.Errorf(
				"failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		fields := strings.Fields(input)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "q", "quit", "exit":
			fmt.Printf("%sGoodbye!%s\n",
				colorGreen, colorReset)
			return nil
		case "help", "h", "?":
			printHelp()
		case "new":
			s.newInvestigation()
		case "enter":
			s.enterNode(args)
		case "leave":
			s.exitNode(args)
		case "tool":
			s.callTool(args)
		case "loop":
			s.loops++
			fmt.Printf("%sloop count now %d%s\n",
				colorDim, s.loops, colorReset)
		case "risk":
			s.setRisk(args)
		case "err":
			s.setErrors(args)
		case "status":
			s.printStatus()
		case "report":
			s.printReport()
		case "stats":
			s.printStats()
		case "reap":
			s.reap(args)
		default:
			fmt.Printf(
				"%sUnknown command %q. "+
					"Type 'help'.%s\n",
				colorRed, cmd, colorReset)
		}
	}
}

func printHelp() {
	fmt.Printf("%s%sCommands:%s\n",
		colorBold, colorYellow, colorReset)
	fmt.Printf("%s%s%s\n",
		colorYellow,
		strings.Repeat("=", 9),
		colorReset)
	for _, line := range []struct {
		cmd  string
		desc string
	}{
		{"new", "start a fresh investigation"},
		{"enter <node>", "request node entry"},
		{"leave <node>", "exit a node"},
		{"tool <name>", "record a tool call"},
		{"loop", "count one planner loop"},
		{"risk <0..1>", "set the risk score"},
		{"err <n>", "set consecutive errors"},
		{"status", "run the safety pipeline"},
		{"report", "detailed safety report"},
		{"stats", "guard registry stats"},
		{"reap <seconds>", "sweep stale contexts"},
		{"q", "quit"},
	} {
		fmt.Printf("  %s%-16s%s %s\n",
			colorCyan, line.cmd, colorReset,
			line.desc)
	}
}

func (s *session) newInvestigation() {
	s.investigationID = "inv-" + uuid.NewString()[:8]
	s.threadID = "t-" + uuid.NewString()[:8]
	s.loops = 0
	s.riskScore = 0
	s.errors = 0

	_, err := s.guard.CreateContext(
		s.investigationID, s.threadID,
		castellan.ContextConfig{})
	if err != nil {
		fmt.Printf("%s%v%s\n",
			colorRed, err, colorReset)
		return
	}
	fmt.Printf(
		"%sInvestigation %s (thread %s) started.%s\n",
		colorGreen, s.investigationID, s.threadID,
		colorReset)
}

func (s *session) enterNode(args []string) {
	if len(args) != 1 {
		fmt.Printf("%susage: enter <node>%s\n",
			colorRed, colorReset)
		return
	}
	adm := s.guard.EnterNode(
		s.investigationID, s.threadID, args[0])
	s.printAdmission("enter "+args[0], adm)
}

func (s *session) exitNode(args []string) {
	if len(args) != 1 {
		fmt.Printf("%susage: leave <node>%s\n",
			colorRed, colorReset)
		return
	}
	s.guard.ExitNode(
		s.investigationID, s.threadID, args[0])
	fmt.Printf("%sleft %s%s\n",
		colorDim, args[0], colorReset)
}

func (s *session) callTool(args []string) {
	if len(args) != 1 {
		fmt.Printf("%susage: tool <name>%s\n",
			colorRed, colorReset)
		return
	}
	adm := s.guard.RecordToolCall(
		s.investigationID, s.threadID, args[0])
	s.printAdmission("tool "+args[0], adm)
}

func (s *session) printAdmission(
	op string, adm castellan.Admission,
) {
	if adm.Allowed() {
		fmt.Printf("%s[allowed]%s %s\n",
			colorGreen, colorReset, op)
		return
	}
	fmt.Printf("%s%s[%s]%s %s\n",
		colorBold, colorRed, adm, colorReset, op)
}

func (s *session) setRisk(args []string) {
	if len(args) != 1 {
		fmt.Printf("%susage: risk <0..1>%s\n",
			colorRed, colorReset)
		return
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil || v < 0 || v > 1 {
		fmt.Printf(
			"%sEnter a number between 0 and 1.%s\n",
			colorRed, colorReset)
		return
	}
	s.riskScore = v
	fmt.Printf("%srisk score now %.2f%s\n",
		colorDim, v, colorReset)
}

func (s *session) setErrors(args []string) {
	if len(args) != 1 {
		fmt.Printf("%susage: err <n>%s\n",
			colorRed, colorReset)
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		fmt.Printf(
			"%sEnter a non-negative number.%s\n",
			colorRed, colorReset)
		return
	}
	s.errors = n
	fmt.Printf("%sconsecutive errors now %d%s\n",
		colorDim, n, colorReset)
}

// snapshot derives an investigation snapshot from the live
// execution ledger plus the simulated signal fields.
func (s *session) snapshot() *castellan.InvestigationState {
	execCtx, ok := s.guard.Context(
		s.investigationID, s.threadID)
	if !ok {
		return nil
	}
	summary := execCtx.Summary()

	domains := make(map[string]int,
		len(summary.ToolCallsByName))
	for tool, n := range summary.ToolCallsByName {
		domains[tool] = n
	}

	return &castellan.InvestigationState{
		SchemaVersion:     castellan.StateSchemaVersion,
		InvestigationID:   s.investigationID,
		LoopCount:         s.loops,
		ToolExecutions:    summary.ToolCallTotal,
		DomainAttempts:    domains,
		Elapsed:           summary.Elapsed,
		RiskScore:         s.riskScore,
		ConsecutiveErrors: s.errors,
		ActiveThreads:     1,
	}
}

func (s *session) printStatus() {
	status := s.manager.ValidateCurrentState(s.snapshot())

	levelColor := colorGreen
	switch status.Level {
	case castellan.LevelElevated:
		levelColor = colorYellow
	case castellan.LevelCritical:
		levelColor = colorMagenta
	case castellan.LevelEmergency:
		levelColor = colorRed
	}

	fmt.Printf("%s%sSafety Status%s\n",
		colorBold, colorYellow, colorReset)
	fmt.Printf("  level:     %s%s%s\n",
		levelColor, status.Level, colorReset)
	fmt.Printf("  control:   %s\n",
		boolWord(status.AllowsAIControl,
			"granted", "revoked"))
	fmt.Printf("  terminate: %s\n",
		boolWord(!status.RequiresImmediateTermination,
			"no", "YES"))
	fmt.Printf("  pressure:  %.2f\n",
		status.ResourcePressure)

	for _, concern := range status.Concerns {
		fmt.Printf("  %s[%s] %s: %s%s\n",
			colorYellow, concern.Severity,
			concern.Kind, concern.Message,
			colorReset)
	}
	for _, action := range status.RecommendedActions {
		fmt.Printf("  %s-> %s%s\n",
			colorCyan, action, colorReset)
	}
}

func (s *session) printReport() {
	report := s.manager.GetDetailedSafetyReport(
		s.snapshot())

	fmt.Printf("%s%sDetailed Report%s\n",
		colorBold, colorYellow, colorReset)
	for dim, pct := range report.UtilizationPercent {
		fmt.Printf("  %-16s %5.1f%%\n", dim, pct)
	}
	for name, note := range report.StrategyNotes {
		fmt.Printf("  %s%s: %s%s\n",
			colorDim, name, note, colorReset)
	}
	for _, line := range report.Status.OverrideReasoning {
		fmt.Printf("  %s| %s%s\n",
			colorWhite, line, colorReset)
	}
}

func (s *session) printStats() {
	stats := s.guard.Stats()
	fmt.Printf("%s%sGuard Stats%s\n",
		colorBold, colorYellow, colorReset)
	fmt.Printf("  active:   %d / %d\n",
		stats.ActiveContexts, stats.MaxConcurrent)
	fmt.Printf("  created:  %d\n", stats.ContextsCreated)
	fmt.Printf("  removed:  %d (+%d reaped)\n",
		stats.ContextsRemoved, stats.ContextsReaped)
	fmt.Printf("  depth:    %d\n", stats.TotalDepth)
	fmt.Printf("  tools:    %d\n", stats.TotalToolCalls)
	for cause, n := range stats.DenialsByCause {
		fmt.Printf("  %s%-20s %d%s\n",
			colorRed, cause, n, colorReset)
	}
}

func (s *session) reap(args []string) {
	if len(args) != 1 {
		fmt.Printf("%susage: reap <seconds>%s\n",
			colorRed, colorReset)
		return
	}
	secs, err := strconv.Atoi(args[0])
	if err != nil || secs < 0 {
		fmt.Printf(
			"%sEnter a non-negative number.%s\n",
			colorRed, colorReset)
		return
	}
	n := s.guard.CleanupStale(
		time.Duration(secs) * time.Second)
	fmt.Printf("%sreaped %d stale context(s)%s\n",
		colorDim, n, colorReset)
}

func boolWord(b bool, yes, no string) string {
	if b {
		return colorGreen + yes + colorReset
	}
	return colorRed + no + colorReset
}
