package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"
	Bold   = "\033[1m"
)

var mu sync.Mutex

func PrintBanner() {
	banner := `
 __  __                 ____                     _
|  \/  | _____   _____ / ___|_   _  __ _ _ __ __| |
| |\/| |/ _ \ \ / / _ \ |  _| | | |/ _` + "`" + ` | '__/ _` + "`" + ` |
| |  | | (_) \ V /  __/ |_| | |_| | (_| | | | (_| |
|_|  |_|\___/ \_/ \___|\____|\__,_|\__,_|_|  \__,_|
`
	fmt.Println(Cyan + banner + Reset)
	fmt.Println(Gray + "  v1.0.0 - Move Token Security Verifier" + Reset)
	fmt.Println()
}

func clearLine() {
	fmt.Print("\r\033[K")
}

func UpdateStatus(format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	msg := fmt.Sprintf(format, a...)
	clearLine()
	if len(msg) > 100 {
		msg = msg[:97] + "..."
	}
	fmt.Print(Cyan + "⚡ " + msg + Reset)
}

func LogSuccess(format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	clearLine()
	fmt.Printf(Green+"[SUCCESS] "+Reset+format+"\n", a...)
}

// LogRisk prints one verdict line for a completed verification.
func LogRisk(target, level string, findings int) {
	mu.Lock()
	defer mu.Unlock()
	clearLine()
	fmt.Printf("%s[%s]%s %s | Findings: %d\n", RiskColor(level), level, Reset, target, findings)
}

func LogInfo(format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	clearLine()
	fmt.Printf(Blue+"[INFO] "+Reset+format+"\n", a...)
}

func LogWarn(format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	clearLine()
	fmt.Printf(Yellow+"[WARN] "+Reset+format+"\n", a...)
}

func LogError(format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	clearLine()
	fmt.Printf(Red+"[ERROR] "+Reset+format+"\n", a...)
}

// RiskColor maps a risk level to its console color.
func RiskColor(level string) string {
	switch level {
	case "DANGEROUS":
		return Red + Bold
	case "ELEVATED_RISK":
		return Red
	case "OPAQUE_BUT_ACTIVE":
		return Yellow
	case "SAFE_DYNAMIC":
		return Cyan
	case "SAFE_STATIC":
		return Green
	default:
		return Gray
	}
}

func StartSpinner(msg string) chan bool {
	stop := make(chan bool)
	go func() {
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		i := 0
		for {
			select {
			case <-stop:
				return
			default:
				mu.Lock()
				clearLine()
				fmt.Printf(Cyan+"%s %s"+Reset, frames[i%len(frames)], msg)
				mu.Unlock()
				time.Sleep(100 * time.Millisecond)
				i++
			}
		}
	}()
	return stop
}

func PrintStats(total, success, failed, flagged int, duration time.Duration) {
	fmt.Println()
	fmt.Println(Gray + strings.Repeat("─", 50) + Reset)
	fmt.Printf("🏁 Verification completed in %s\n", duration)
	fmt.Printf("📊 Total: %d | ✅ Success: %d | ❌ Failed: %d | 🛡️  Flagged: %d\n", total, success, failed, flagged)
	fmt.Println(Gray + strings.Repeat("─", 50) + Reset)
}
