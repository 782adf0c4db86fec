// Package ui is the tview single-page chat surface: a scrolling transcript,
// a multi-line input box, a model picker modal and an optional debug console.
package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/osschat/termchat/internal/chat"
	"github.com/osschat/termchat/internal/logger"
	"github.com/osschat/termchat/internal/ollama"
)

// Options control the initial UI state; slash commands change most of them at
// runtime.
type Options struct {
	Dev           bool
	ShowReasoning bool
}

var (
	app          *tview.Application
	pages        *tview.Pages
	mainFlex     *tview.Flex
	transcript   *tview.TextView
	input        *tview.TextArea
	debugConsole *tview.TextView
	localLogger  *logger.Logger

	session *chat.Session
	client  *ollama.Client
	opts    Options
	debugOn bool
)

// Init builds the widgets. Must run before logger.Init so the debug console
// exists to receive log output.
func Init(o Options) {
	opts = o
	debugOn = o.Dev

	app = tview.NewApplication()
	app.EnablePaste(true)
	app.EnableMouse(true)

	debugConsole = initDebugConsole()
	transcript = initTranscript()
	input = initInput()
}

func initTranscript() *tview.TextView {
	view := tview.NewTextView().
		SetChangedFunc(func() {
			app.Draw()
		}).
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)

	view.SetTitle("Conversation").SetBorder(true)
	view.SetScrollable(true)
	view.ScrollToEnd()
	return view
}

func initInput() *tview.TextArea {
	area := tview.NewTextArea()
	area.SetTitle("Prompt").SetBorder(true)
	return area
}

func initDebugConsole() *tview.TextView {
	console := tview.NewTextView().
		SetChangedFunc(func() {
			app.Draw()
		}).
		SetDynamicColors(true).
		SetWordWrap(true)

	console.SetTitle("Debugger").SetBorder(true)
	console.ScrollToEnd()
	return console
}

// DebugConsole exposes the console view so the logger can write into it.
func DebugConsole() *tview.TextView {
	return debugConsole
}

// Run wires the widgets to the session and blocks until the app stops.
func Run(s *chat.Session, c *ollama.Client) error {
	session = s
	client = c
	localLogger = logger.New("ui")

	transcript.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter {
			app.SetFocus(input)
		}
		return event
	})

	subFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(transcript, 0, 1, false).
		AddItem(input, 8, 2, true)
	mainFlex = tview.NewFlex().
		AddItem(subFlex, 0, 2, false)

	if debugOn {
		mainFlex.AddItem(debugConsole, 0, 1, false)
	}

	pages = tview.NewPages().
		AddPage("main", mainFlex, true, true)

	fmt.Fprintf(transcript, "Chatting with [yellow]%s[-] on %s. /help lists commands.\n",
		session.Model(), client.Base())

	setInputCapture()

	return app.SetRoot(pages, true).SetFocus(input).Run()
}

func setInputCapture() {
	input.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyESC:
			if transcript.GetText(false) != "" {
				app.SetFocus(transcript)
			}
		case tcell.KeyEnter:
			content := strings.TrimSpace(input.GetText())
			if content == "" {
				return nil
			}
			input.SetText("", true)

			if strings.HasPrefix(content, "/") {
				runCommand(content)
				return nil
			}

			input.SetDisabled(true)
			sendPrompt(content)
			return nil
		}
		return event
	})
}

func runCommand(content string) {
	fields := strings.Fields(content)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		listHelp()
	case "/bye", "/exit", "/quit":
		quitApp()
	case "/debug":
		toggleDebugConsole()
	case "/models":
		input.SetDisabled(true)
		go openModelPicker()
	case "/effort":
		setEffort(args)
	case "/temp":
		setTemperature(args)
	case "/reasoning":
		opts.ShowReasoning = !opts.ShowReasoning
		fmt.Fprintf(transcript, "\nReasoning display: %s\n", onOff(opts.ShowReasoning))
	case "/clear":
		session.Reset()
		transcript.Clear()
		fmt.Fprintf(transcript, "Conversation cleared. Model: [yellow]%s[-]\n", session.Model())
	case "/pull":
		if len(args) != 1 {
			fmt.Fprintf(transcript, "\nUsage: /pull <model>\n")
			return
		}
		input.SetDisabled(true)
		go pullModel(args[0])
	default:
		fmt.Fprintf(transcript, "\nUnknown command %s. /help lists commands.\n", cmd)
	}
}

func sendPrompt(content string) {
	fmt.Fprintln(transcript, "\n[red::b]You:[-:-:-]")
	fmt.Fprintf(transcript, "%s\n\n", tview.Escape(content))
	fmt.Fprintf(transcript, "[green::b]Bot:[-:-:-]\n")

	go func() {
		defer enableInput()

		inReasoning := false
		turn, err := session.Send(context.Background(), content, func(d chat.Delta) error {
			app.QueueUpdateDraw(func() {
				if d.Thinking != "" && opts.ShowReasoning {
					if !inReasoning {
						fmt.Fprintf(transcript, "[gray::d]")
						inReasoning = true
					}
					fmt.Fprintf(transcript, "%s", tview.Escape(d.Thinking))
				}
				if d.Content != "" {
					if inReasoning {
						fmt.Fprintf(transcript, "[-:-:-]\n\n")
						inReasoning = false
					}
					fmt.Fprintf(transcript, "%s", tview.Escape(d.Content))
				}
			})
			return nil
		})

		app.QueueUpdateDraw(func() {
			if inReasoning {
				fmt.Fprintf(transcript, "[-:-:-]\n")
			}
			if err != nil {
				localLogger.Error("Turn failed: ", err)
				fmt.Fprintf(transcript, "\n[red]Error: %s[-]\n", tview.Escape(err.Error()))
				return
			}
			if turn.Reasoning != "" && !opts.ShowReasoning {
				fmt.Fprintf(transcript, "\n[gray::d](reasoning hidden, /reasoning to show)[-:-:-]")
			}
			stats := turn.Stats
			if stats.EvalCount > 0 {
				fmt.Fprintf(transcript, "\n[gray](%.1fs | %d tok | %.1f tok/s)[-]\n",
					stats.Duration.Seconds(), stats.EvalCount, stats.EvalRate)
			} else {
				fmt.Fprintf(transcript, "\n[gray](%.1fs)[-]\n", stats.Duration.Seconds())
			}
		})
	}()
}

func enableInput() {
	app.QueueUpdateDraw(func() {
		input.SetDisabled(false)
		app.SetFocus(input)
	})
}

func setEffort(args []string) {
	if len(args) != 1 {
		fmt.Fprintf(transcript, "\nEffort is %s. Usage: /effort <low|medium|high>\n", session.Effort())
		return
	}
	effort, err := chat.ParseEffort(args[0])
	if err != nil {
		fmt.Fprintf(transcript, "\n%s\n", err)
		return
	}
	session.SetEffort(effort)
	fmt.Fprintf(transcript, "\nEffort set to %s\n", effort)
}

func setTemperature(args []string) {
	if len(args) != 1 {
		fmt.Fprintf(transcript, "\nTemperature is %.2f. Usage: /temp <0..2>\n", session.Temperature())
		return
	}
	temp, err := strconv.ParseFloat(args[0], 64)
	if err != nil || temp < 0 || temp > 2 {
		fmt.Fprintf(transcript, "\nTemperature must be a number between 0 and 2\n")
		return
	}
	session.SetTemperature(temp)
	fmt.Fprintf(transcript, "\nTemperature set to %.2f\n", temp)
}

func createModal(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

func openModelPicker() {
	models, err := client.ListModels(context.Background())
	if err != nil {
		localLogger.Error("Failed to list models: ", err)
		app.QueueUpdateDraw(func() {
			fmt.Fprintf(transcript, "\n[red]Failed to list models: %s[-]\n", tview.Escape(err.Error()))
			input.SetDisabled(false)
		})
		return
	}

	list := tview.NewList()
	list.SetBorder(true)
	list.SetTitle("Models")

	closePicker := func() {
		pages.RemovePage("models")
		input.SetDisabled(false)
		app.SetFocus(input)
	}

	current := session.Model()
	for i, model := range models {
		model := model
		shortcut := rune(0)
		if i < 9 {
			shortcut = '1' + rune(i)
		}
		secondary := model.Details.ParameterSize
		if model.Name == current {
			secondary = "current"
		}
		list.AddItem(model.Name, secondary, shortcut, func() {
			if model.Name != session.Model() {
				session.SetModel(model.Name)
				fmt.Fprintf(transcript, "\nUsing model: [yellow]%s[-]\n", model.Name)
				localLogger.Info("Selected model: ", model.Name)
			}
			closePicker()
		})
	}
	list.AddItem("Back", "", 'q', closePicker)

	app.QueueUpdateDraw(func() {
		pages.AddPage("models", createModal(list, 44, 2*len(models)+4), true, true)
		app.SetFocus(list)
	})
}

func pullModel(name string) {
	defer enableInput()

	app.QueueUpdateDraw(func() {
		fmt.Fprintf(transcript, "\nPulling [yellow]%s[-]...\n", tview.Escape(name))
	})

	lastStatus := ""
	lastBucket := -1
	err := client.Pull(context.Background(), name, func(p ollama.PullProgress) error {
		status := p.Status
		bucket := int(p.Percent()) / 10
		if status == lastStatus && bucket == lastBucket {
			return nil
		}
		lastStatus, lastBucket = status, bucket
		app.QueueUpdateDraw(func() {
			if p.Percent() >= 0 {
				fmt.Fprintf(transcript, "  %s (%.0f%%)\n", tview.Escape(status), p.Percent())
			} else {
				fmt.Fprintf(transcript, "  %s\n", tview.Escape(status))
			}
		})
		return nil
	})

	app.QueueUpdateDraw(func() {
		if err != nil {
			fmt.Fprintf(transcript, "[red]Pull failed: %s[-]\n", tview.Escape(err.Error()))
			return
		}
		fmt.Fprintf(transcript, "Pulled [yellow]%s[-]\n", tview.Escape(name))
	})
}

func toggleDebugConsole() {
	if debugOn {
		mainFlex.RemoveItem(debugConsole)
		fmt.Fprintf(transcript, "\nDebug console disabled\n")
	} else {
		mainFlex.AddItem(debugConsole, 0, 1, false)
		fmt.Fprintf(transcript, "\nDebug console enabled\n")
	}
	debugOn = !debugOn
}

func quitApp() {
	localLogger.Info("Shutting down")
	logger.Close()
	app.Stop()
}

func listHelp() {
	fmt.Fprintf(transcript, "\nCommands:\n")
	fmt.Fprintf(transcript, "- /help: show this message\n")
	fmt.Fprintf(transcript, "- /models: pick the active model\n")
	fmt.Fprintf(transcript, "- /pull <model>: download a model\n")
	fmt.Fprintf(transcript, "- /effort <low|medium|high>: set reasoning effort\n")
	fmt.Fprintf(transcript, "- /temp <0..2>: set temperature\n")
	fmt.Fprintf(transcript, "- /reasoning: toggle reasoning display\n")
	fmt.Fprintf(transcript, "- /clear: reset the conversation\n")
	fmt.Fprintf(transcript, "- /debug: toggle the debug console\n")
	fmt.Fprintf(transcript, "- /bye: exit (also /exit, /quit)\n\n")
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
