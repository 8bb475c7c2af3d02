package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shksin/multi-agent-chatbot/agent/agents"
	"github.com/shksin/multi-agent-chatbot/agent/agents/kbsearch"
	"github.com/shksin/multi-agent-chatbot/agent/agents/personal"
	"github.com/shksin/multi-agent-chatbot/agent/agents/reasoning"
	"github.com/shksin/multi-agent-chatbot/agent/contract"
	"github.com/shksin/multi-agent-chatbot/agent/orchestrator"
	"github.com/shksin/multi-agent-chatbot/agent/pool"
	"github.com/shksin/multi-agent-chatbot/agent/summarizer"
	"github.com/shksin/multi-agent-chatbot/pkg/agentsvc"
	"github.com/shksin/multi-agent-chatbot/pkg/azureopenai"
	configx "github.com/shksin/multi-agent-chatbot/pkg/config"
	logx "github.com/shksin/multi-agent-chatbot/pkg/logger"
)

func main() {
	// Flags must be registered before the first config load parses them.
	queryFlag := flag.String("q", "", "answer one query and exit")
	tokenFlag := flag.String("token", "", "auth token for personalized answers")

	logCfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*logCfg)
	logger := logx.Component("main")

	svcCfg := configx.MustNew[agentsvc.Config]("AGENT_SERVICE")
	poolCfg := configx.MustNew[pool.Config]("POOL")
	pools, err := pool.NewService(*poolCfg, func(endpoint string) (*agentsvc.Client, error) {
		cfg := *svcCfg
		cfg.Endpoint = endpoint
		return agentsvc.NewClient(cfg)
	})
	if err != nil {
		panic(fmt.Sprintf("pool service: %v", err))
	}
	defer pools.Close()

	personalCfg := configx.MustNew[personal.Config]("USER_AGENT")
	personalAgent, err := personal.New(*personalCfg)
	if err != nil {
		panic(fmt.Sprintf("personal agent: %v", err))
	}

	knowledgeCfg := configx.MustNew[kbsearch.Config]("KNOWLEDGE")
	knowledgeAgent, err := kbsearch.New(*knowledgeCfg)
	if err != nil {
		panic(fmt.Sprintf("knowledge agent: %v", err))
	}

	reasoningCfg := configx.MustNew[reasoning.Config]("REASONING")
	if strings.TrimSpace(reasoningCfg.Endpoint) == "" {
		reasoningCfg.Endpoint = svcCfg.Endpoint
	}
	reasoningAgent, err := reasoning.New(*reasoningCfg, pools)
	if err != nil {
		panic(fmt.Sprintf("reasoning agent: %v", err))
	}

	registryCfg := configx.MustNew[agents.Config]("AGENTS")
	registry, err := agents.NewRegistry(*registryCfg, personalAgent, knowledgeAgent, reasoningAgent)
	if err != nil {
		panic(fmt.Sprintf("agent registry: %v", err))
	}

	orchCfg := configx.MustNew[orchestrator.Config]("ORCHESTRATOR")
	var editor contract.Summarizer
	if orchCfg.SummaryEnabled {
		aoaiCfg := configx.MustNew[azureopenai.Config]("AZURE_OPENAI")
		aoaiClient, err := azureopenai.NewClient(*aoaiCfg)
		if err != nil {
			panic(fmt.Sprintf("azure openai client: %v", err))
		}
		editor, err = summarizer.New(aoaiClient, *aoaiCfg)
		if err != nil {
			panic(fmt.Sprintf("summarizer: %v", err))
		}
	}

	orch, err := orchestrator.New(registry, editor, *orchCfg)
	if err != nil {
		panic(fmt.Sprintf("orchestrator: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if text := strings.TrimSpace(*queryFlag); text != "" {
		printResult(orch.Query(ctx, contract.Query{Text: text, AuthToken: *tokenFlag}))
		return
	}

	logger.Info().Msg("interactive mode: type a question, ctrl-d to quit")
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		if text := strings.TrimSpace(scanner.Text()); text != "" {
			printResult(orch.Query(ctx, contract.Query{Text: text, AuthToken: *tokenFlag}))
		}
		fmt.Print("> ")
	}
}

func printResult(result contract.OrchestrationResult) {
	pretty, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Println(result.FinalText)
		return
	}
	fmt.Println(string(pretty))
}
