/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mautops/taskqueue-gin/internal/config"
	"github.com/mautops/taskqueue-gin/internal/container"
	"github.com/mautops/taskqueue-gin/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server on stdio",
	Long: `Start the Model Context Protocol server on standard input/output.
AI coding assistants can connect over stdio and drive the task queue
through MCP tools: submitting tasks, advancing development workflow
phases, managing projects and reading queue statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// 2. 初始化容器并启动调度器
		ctr, err := container.NewContainer(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()
		ctr.Start()

		// 3. 启动 MCP 服务器,SIGINT/SIGTERM 时退出
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		services := ctr.Services()
		server := mcp.NewServer(services.Task, services.Workflow, services.Project, services.Stats, "1.0.0")
		return server.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("config", "", "Config file path (default: config.yaml)")
}
