package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

var (
	version      = flag.Bool("version", false, "Print version info")
	help         = flag.Bool("help", false, "Print help")
	logLevel     = flag.Int("log", 3, "Log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	backend      = flag.String("backend", "spjs", "CNC backend (spjs or bcnc)")
	cncHost      = flag.String("cnc_host", "localhost", "Hostname where SPJS or bCNC is running")
	cncPort      = flag.Int("cnc_port", 8989, "Port for SPJS (typically 8989) or bCNC (typically 8080)")
	serialDevice = flag.String("serial_device", "/dev/ttyACM0", "Serial port SPJS forwards commands to (unused for bCNC)")
	tinyg        = flag.Bool("tinyg", false, "Queue a feed hold and wipe when the shuttle recenters (TinyG)")
	redisServer  = flag.String("redis_server", "", "Redis server address for status broadcast (empty disables)")
	redisPort    = flag.Int("redis_port", 6379, "Redis server port")
	gpioChip     = flag.String("gpio_chip", "", "GPIO chip for auxiliary switches (empty disables)")
	gpioFeedHold = flag.Int("gpio_feed_hold", -1, "GPIO line offset of the feed hold switch (-1 disables)")
	gpioResume   = flag.Int("gpio_resume", -1, "GPIO line offset of the resume switch (-1 disables)")
	gpioReset    = flag.Int("gpio_reset", -1, "GPIO line offset of the reset switch (-1 disables)")
	gpioReconn   = flag.Int("gpio_reconnect", -1, "GPIO line offset of the reconnect switch (-1 disables)")
)

const (
	ProjectName    = "shuttlecp"
	ProjectVersion = "1.0.0"
)

func printVersion() {
	fmt.Printf("%s v%s\n", ProjectName, ProjectVersion)
}

func printHelp() {
	printVersion()
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <device>\n", ProjectName)
	flag.PrintDefaults()
}

func main() {
	flag.Parse()

	if *version {
		printVersion()
		os.Exit(0)
	}

	if *help {
		printHelp()
		os.Exit(0)
	}

	// Validate log level
	if *logLevel < 0 || *logLevel > 4 {
		log.Fatalf("invalid log level %d", *logLevel)
	}

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <device>\n", ProjectName)
		os.Exit(1)
	}

	// Parse backend type
	var backendEnum BackendType
	switch *backend {
	case "spjs":
		backendEnum = BackendSPJS
		log.Printf("Selected backend: SPJS")
	case "bcnc":
		backendEnum = BackendBCNC
		log.Printf("Selected backend: bCNC")
	default:
		log.Fatalf("invalid backend: %s (must be 'spjs' or 'bcnc')", *backend)
	}

	opts := &Options{
		LogLevel:        LogLevel(*logLevel),
		DevicePath:      flag.Arg(0),
		Backend:         backendEnum,
		CNCHost:         *cncHost,
		CNCPort:         *cncPort,
		SerialDevice:    *serialDevice,
		TinyG:           *tinyg,
		RedisServerAddr: *redisServer,
		RedisServerPort: uint16(*redisPort),
		GPIOChip:        *gpioChip,
		FeedHoldLine:    *gpioFeedHold,
		ResumeLine:      *gpioResume,
		ResetLine:       *gpioReset,
		ReconnectLine:   *gpioReconn,
	}

	app, err := NewPendantApp(opts)
	if err != nil {
		log.Fatalf("failed to create pendant app: %v", err)
	}
	defer app.Destroy()

	// Handle SIGINT and SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Run until signal received
	<-sigChan
}
