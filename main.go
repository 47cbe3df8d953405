package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"teacher1/commands"
	"teacher1/config"

	log "github.com/sirupsen/logrus"
)

func setLogLevel(level string) {
	l, err := log.ParseLevel(level)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	log.SetLevel(l)
}

func registerGlobalFlags(fset *flag.FlagSet) {
	flag.VisitAll(func(f *flag.Flag) {
		fset.Var(f.Value, f.Name, f.Usage)
	})
}

func checkConfig(cfg string) {
	if cfg == "" {
		log.Fatal("Config file not specified")
	}
}

func loadConfig(configFile string) *config.Config {
	cfg, err := config.NewConfigFromFile(configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// main is the entry point of the application.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	configFile := flag.String("config", "", "Path to config file")
	logLevel := flag.String("loglevel", "info", "Log level")

	initCmd := flag.NewFlagSet("init", flag.ExitOnError)
	registerGlobalFlags(initCmd)

	aiCmd := flag.NewFlagSet("ai", flag.ExitOnError)
	registerGlobalFlags(aiCmd)

	chatbotCmd := flag.NewFlagSet("chatbot", flag.ExitOnError)
	registerGlobalFlags(chatbotCmd)

	chatCmd := flag.NewFlagSet("chat", flag.ExitOnError)
	logFile := chatCmd.String("logfile", filepath.Join(os.TempDir(), "teacher1-chat.log"), "Where the console writes its logs")
	registerGlobalFlags(chatCmd)

	webCmd := flag.NewFlagSet("web", flag.ExitOnError)
	registerGlobalFlags(webCmd)

	infoCmd := flag.NewFlagSet("info", flag.ExitOnError)
	registerGlobalFlags(infoCmd)

	if len(os.Args) < 2 {
		log.WithField("args", os.Args).Fatal("Expected a subcommand: init, ai, chatbot, chat, web or info")
	}
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "init":
		initCmd.Parse(args)
		checkConfig(*configFile)
		setLogLevel(*logLevel)
		cfg := config.NewEmptyConfig(*configFile)
		commands.RunInit(ctx, cfg)
	case "ai":
		aiCmd.Parse(args)
		checkConfig(*configFile)
		setLogLevel(*logLevel)
		commands.RunAI(ctx, loadConfig(*configFile))
	case "chatbot":
		chatbotCmd.Parse(args)
		checkConfig(*configFile)
		setLogLevel(*logLevel)
		commands.RunChatbot(ctx, loadConfig(*configFile))
	case "chat":
		chatCmd.Parse(args)
		checkConfig(*configFile)
		setLogLevel(*logLevel)
		commands.RunChat(ctx, loadConfig(*configFile), *logFile)
	case "web":
		webCmd.Parse(args)
		checkConfig(*configFile)
		setLogLevel(*logLevel)
		commands.RunWeb(ctx, loadConfig(*configFile))
	case "info":
		infoCmd.Parse(args)
		checkConfig(*configFile)
		setLogLevel(*logLevel)
		commands.RunInfo(ctx, loadConfig(*configFile))
	default:
		log.Fatalf("Invalid subcommand '%s'", os.Args[1])
	}
}
