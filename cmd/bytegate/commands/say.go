package commands

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/harunnryd/bytegate/pkg/protocol"
)

var (
	sayURL     string
	saySkill   string
	sayAudio   string
	sayTimeout time.Duration
	sayKeys    = map[string]*string{
		"language-model": new(string),
		"text-to-speech": new(string),
		"news":           new(string),
		"weather":        new(string),
	}
)

var sayCmd = &cobra.Command{
	Use:   "say [text]",
	Short: "Send one message to a running gateway and print the reply",
	Long: `Send one message to a running gateway and print the reply.

Examples:
  bytegate say --llm-key $GEMINI_API_KEY "what is a goroutine?"
  bytegate say --skill weather --weather-key $OPENWEATHER_API_KEY`,
	RunE: runSay,
}

func init() {
	f := sayCmd.Flags()
	f.StringVar(&sayURL, "url", "ws://localhost:8000/ws", "gateway WebSocket URL")
	f.StringVar(&saySkill, "skill", "", "invoke a skill (news, weather) instead of sending text")
	f.StringVarP(&sayAudio, "output", "o", "", "write synthesized audio to this file")
	f.DurationVar(&sayTimeout, "timeout", 60*time.Second, "how long to wait for the reply")
	f.StringVar(sayKeys["language-model"], "llm-key", "", "language model key")
	f.StringVar(sayKeys["text-to-speech"], "tts-key", "", "text-to-speech key")
	f.StringVar(sayKeys["news"], "news-key", "", "news key")
	f.StringVar(sayKeys["weather"], "weather-key", "", "weather key")
}

func runSay(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" && saySkill == "" {
		return fmt.Errorf("nothing to send, pass text or --skill")
	}
	conn, _, err := gws.DefaultDialer.Dial(sayURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", sayURL, err)
	}
	defer conn.Close()

	keys := map[string]string{}
	for name, v := range sayKeys {
		if *v != "" {
			keys[name] = *v
		}
	}
	if len(keys) > 0 {
		if err := conn.WriteJSON(map[string]any{"type": "config", "keys": keys}); err != nil {
			return err
		}
	}
	if saySkill != "" {
		err = conn.WriteJSON(map[string]any{"type": "skill", "name": saySkill})
	} else {
		err = conn.WriteJSON(map[string]any{"type": "final", "text": text})
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	deadline := time.Now().Add(sayTimeout)
	replied := false
	for {
		_ = conn.SetReadDeadline(deadline)
		if replied {
			// audio follows the reply shortly when synthesis is configured
			_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if replied {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		var ev protocol.Outbound
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode %q: %w", data, err)
		}
		switch ev.Type {
		case protocol.TypeSystem:
			fmt.Fprintln(out, "[system]", ev.Text)
		case protocol.TypeUser:
			fmt.Fprintln(out, "[you]", ev.Text)
		case protocol.TypeAssistant:
			fmt.Fprintln(out, "[byte]", ev.Text)
			if saySkill != "" {
				return nil
			}
			replied = true
		case protocol.TypeAudio:
			audio, err := base64.StdEncoding.DecodeString(ev.B64)
			if err != nil {
				return fmt.Errorf("decode audio: %w", err)
			}
			fmt.Fprintf(out, "[audio] %d bytes %s\n", len(audio), ev.MIME)
			if sayAudio != "" {
				return os.WriteFile(sayAudio, audio, 0o644)
			}
			return nil
		}
	}
}
