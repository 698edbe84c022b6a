// Command interceptorctl is an operator CLI for exercising a trust
// interceptor outside a live broker: it can replay a file of newline-
// delimited events through a plugin instance and print the disposition of
// each, and it can generate a signed token for manual testing.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/trustmesh/interceptor/internal/config"
	"github.com/trustmesh/interceptor/internal/interceptor"
	"github.com/trustmesh/interceptor/internal/mac"
	"github.com/trustmesh/interceptor/internal/tokenat"
	"github.com/trustmesh/interceptor/public/plugin"
)

func main() {
	root := &cobra.Command{
		Use:   "interceptorctl",
		Short: "Operator CLI for the trust-aware message interceptor",
	}
	root.AddCommand(newReplayCmd())
	root.AddCommand(newSignCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newReplayCmd() *cobra.Command {
	var configPath, eventsPath, topic string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a file of JSON token payloads through one plugin instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.Load(configPath)
			if err != nil {
				opts = config.Default()
			}
			p, err := plugin.Init(opts, nil)
			if err != nil {
				return fmt.Errorf("init plugin: %w", err)
			}
			defer p.Cleanup()

			f, err := os.Open(eventsPath)
			if err != nil {
				return fmt.Errorf("open events file: %w", err)
			}
			defer f.Close()

			scanner := bufio.NewScanner(f)
			lineNo := 0
			for scanner.Scan() {
				lineNo++
				line := scanner.Text()
				if line == "" {
					continue
				}
				dec := p.OnMessage(topic, []byte(line))
				printDecision(lineNo, dec)
			}
			return scanner.Err()
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "broker.yaml", "broker options file")
	cmd.Flags().StringVar(&eventsPath, "events", "events.jsonl", "newline-delimited token payloads to replay")
	cmd.Flags().StringVar(&topic, "topic", "data", "topic to deliver events on")
	return cmd
}

func printDecision(lineNo int, dec interceptor.Decision) {
	fmt.Printf("line %d: %s\n", lineNo, dec.String())
}

func newSignCmd() *cobra.Command {
	var issuer, client, message, key string
	var publishTopics, subscribeTopics []string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Build and MAC-sign a token for manual testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			at := &tokenat.AT{
				IssuerBroker:    issuer,
				ClientID:        client,
				Signers:         []string{issuer},
				PublishTopics:   publishTopics,
				SubscribeTopics: subscribeTopics,
				Message:         message,
				MsgID:           time.Now().UnixNano(),
			}
			traceID := uuid.New().String()
			fmt.Fprintf(os.Stderr, "interceptorctl: sign trace_id=%s\n", traceID)
			noMAC, err := at.SerializeWithoutMAC()
			if err != nil {
				return err
			}
			tag := mac.Compute([]byte(key), noMAC)
			sealed := at.AttachMAC(tag)
			out, err := sealed.Serialize()
			if err != nil {
				return err
			}
			var pretty map[string]interface{}
			if err := json.Unmarshal(out, &pretty); err == nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(pretty)
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&issuer, "issuer", "B0", "issuing broker id")
	cmd.Flags().StringVar(&client, "client", "C1", "client id")
	cmd.Flags().StringVar(&message, "message", "hello", "message body")
	cmd.Flags().StringVar(&key, "key", "default_hmac_key", "HMAC key")
	cmd.Flags().StringSliceVar(&publishTopics, "publish", nil, "publish topics")
	cmd.Flags().StringSliceVar(&subscribeTopics, "subscribe", nil, "subscribe topics")
	return cmd
}
