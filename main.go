// Command ratox-go is a headless Tox daemon that exposes its entire user
// interface as a tree of FIFOs and status files under a configuration
// directory (spec §1, §6).
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/opd-ai/ratox-go/client"
	"github.com/opd-ai/ratox-go/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const defaultConfigDir = ".config/ratox-go"

func main() {
	var (
		ipv6       = flag.Bool("6", false, "enable IPv6 (default IPv4, -4)")
		ipv4       = flag.Bool("4", false, "force IPv4 (default)")
		udp        = flag.Bool("t", false, "enable UDP (default)")
		tcpOnly    = flag.Bool("T", false, "force TCP-only (disable UDP, default -t)")
		encrypt    = flag.Bool("E", false, "encrypt the save file (default unencrypted, -e)")
		noEncrypt  = flag.Bool("e", false, "force an unencrypted save file (default)")
		proxy      = flag.Bool("P", false, "enable proxy (default disabled, -p; the transport does not apply proxy settings)")
		noProxy    = flag.Bool("p", false, "force proxy disabled (default)")
		proxyAddr  = flag.String("proxyaddr", "", "proxy server address")
		proxyPort  = flag.Uint("proxyport", 0, "proxy server port")
		configPath = flag.String("c", "", "configuration directory (default ~/"+defaultConfigDir+")")
		debug      = flag.Bool("d", false, "enable debug logging")
	)
	flag.Usage = usage
	flag.Parse()

	log := logrus.StandardLogger()
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	}

	configDir := *configPath
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("determine home directory: %v", err)
		}
		configDir = filepath.Join(home, defaultConfigDir)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		log.Fatalf("create config directory: %v", err)
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	if *debug {
		cfg.Debug = true
	}
	if *ipv6 && !*ipv4 {
		cfg.IPv6Enabled = true
	} else if *ipv4 {
		cfg.IPv6Enabled = false
	}
	if *udp && !*tcpOnly {
		cfg.UDPEnabled = true
	} else if *tcpOnly {
		cfg.UDPEnabled = false
	}
	if *encrypt && !*noEncrypt {
		cfg.EncryptSave = true
	} else if *noEncrypt {
		cfg.EncryptSave = false
	}
	if *proxy && !*noProxy {
		cfg.ProxyEnabled = true
	} else if *noProxy {
		cfg.ProxyEnabled = false
	}
	if *proxyAddr != "" {
		cfg.ProxyAddress = *proxyAddr
	}
	if *proxyPort != 0 {
		cfg.ProxyPort = uint16(*proxyPort)
	}
	if savefile := flag.Arg(0); savefile != "" {
		cfg.SaveFile = savefile
	}

	c, err := client.New(cfg, promptPassphrase)
	if err != nil {
		log.Fatalf("initialize client: %v", err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	signal.Ignore(syscall.SIGPIPE)

	go func() {
		<-signals
		c.Stop()
	}()

	if err := c.Run(); err != nil {
		log.Fatalf("client exited with error: %v", err)
	}
}

// promptPassphrase reads a passphrase from the controlling terminal with
// echo disabled, confirming it twice when creating a new encrypted save
// file (spec §4.3). Terminal interaction is the out-of-scope external
// collaborator named in spec §1; main owns it so the client package stays
// free of direct tty access.
func promptPassphrase(confirm bool) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	fmt.Fprint(os.Stderr, "Passphrase: ")
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	if !confirm {
		return pass, nil
	}

	fmt.Fprint(os.Stderr, "Confirm passphrase: ")
	again, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read passphrase confirmation: %w", err)
	}
	if string(pass) != string(again) {
		return nil, fmt.Errorf("passphrases do not match")
	}
	return pass, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-4|-6] [-t|-T] [-e|-E] [-p|-P] [-d] [-c configdir] [savefile]\n", os.Args[0])
	flag.PrintDefaults()
}
