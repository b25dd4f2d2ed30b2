package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// interactiveCmd 表示交互式命令，用于启动一个REPL
var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Start an interactive session",
	Long: `Start an interactive session with the queue CLI.
Commands can be entered directly at the prompt and share the same in-memory queues.
Ctrl+C cancels a blocked push or pop; at the prompt it exits.
Type 'exit' or 'quit' to exit.`,
	Aliases: []string{"i", "shell"},
	Run: func(cmd *cobra.Command, args []string) {
		runInteractiveMode()
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

// running 记录正在执行的命令的取消函数
var running struct {
	sync.Mutex
	cancel context.CancelFunc
}

func runInteractiveMode() {
	fmt.Println("Queue CLI Interactive Mode")
	fmt.Println("Type 'help' for available commands or 'exit' to quit")

	// 设置信号处理，捕获Ctrl+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// 创建一个channel，用于通知主循环何时退出
	doneChan := make(chan struct{})

	// 有命令在执行时取消该命令，否则退出
	go func() {
		for range sigChan {
			running.Lock()
			cancel := running.cancel
			running.Unlock()

			if cancel != nil {
				cancel()
				continue
			}
			fmt.Println("\nReceived interrupt signal, exiting...")
			close(doneChan)
			return
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		}
	}()

	for {
		// 使用自定义提示符
		fmt.Print("> ")

		var input string
		select {
		case <-doneChan:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			input = strings.TrimSpace(line)
		}

		if input == "" {
			continue
		}

		if input == "exit" || input == "quit" {
			fmt.Println("Exiting...")
			return
		}

		// 解析并执行命令
		executeCommand(input)
	}
}

func executeCommand(input string) {
	// 使用shellwords解析命令行参数
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	args, err := parser.Parse(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing command: %v\n", err)
		return
	}

	if len(args) == 0 {
		return
	}

	// 交互模式中不允许嵌套启动交互模式
	if args[0] == "interactive" || args[0] == "i" || args[0] == "shell" {
		fmt.Println("Already in interactive mode")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	running.Lock()
	running.cancel = cancel
	running.Unlock()

	defer func() {
		running.Lock()
		running.cancel = nil
		running.Unlock()
		cancel()
	}()

	// 使用根命令来查找和执行命令
	cmd := rootCmd
	cmd.SetArgs(args)

	// 如果遇到错误，捕获错误而不是退出程序
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	resetFlags(cmd)
}

// resetFlags 将子命令的标志恢复为默认值，避免上一条命令的参数残留
func resetFlags(root *cobra.Command) {
	for _, c := range root.Commands() {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			}
		})
		resetFlags(c)
	}
}
