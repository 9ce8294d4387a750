// Copyright © 2024 the ms2 authors
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/howeyc/gopass"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tvkit/ms2/pkg/msf"
)

var (
	sendAddr       string
	sendChannel    string
	sendClientName string
	sendToken      string
	promptForToken bool
	sendVideoID    int64
	sendPosition   float64
	sendVolume     string
	sendKey        string
	sendData       string
	sendWait       time.Duration
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <event>",
	Short: "Publish a message to a channel host as a remote client",
	Long: `send connects to a running channel host the way a second-screen
client would, and publishes one message.

The built-in protocol events build their own payload from flags:
play and seek use --video/--position, volume uses --volume, and
keydown uses --key. Any other event sends the JSON given to --data.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendEvent(args[0])
	},
}

func init() {
	RootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&sendAddr, "addr", "a", "127.0.0.1:8001", "host:port of the channel service")
	sendCmd.Flags().StringVarP(&sendChannel, "channel", "c", "tvapp", "channel to publish on")
	sendCmd.Flags().StringVarP(&sendClientName, "name", "n", "ms2-cli", "client name announced to the host")
	sendCmd.Flags().StringVarP(&sendToken, "token", "t", "", "access token for the channel service")
	sendCmd.Flags().BoolVarP(&promptForToken, "prompt-for-token", "p", false, "prompt for the access token instead of passing it on the command line")
	sendCmd.Flags().Int64Var(&sendVideoID, "video", 0, "video id for play")
	sendCmd.Flags().Float64Var(&sendPosition, "position", 0, "position in seconds for play and seek")
	sendCmd.Flags().StringVar(&sendVolume, "volume", "", "signed volume level; negative means muted at that level")
	sendCmd.Flags().StringVar(&sendKey, "key", "", "key name or numeric code for keydown")
	sendCmd.Flags().StringVar(&sendData, "data", "", "JSON body for custom events")
	sendCmd.Flags().DurationVar(&sendWait, "wait", 2*time.Second, "how long to wait for responses from the host")
}

func sendEvent(event string) error {
	if promptForToken {
		fmt.Printf("Token: ")
		token, err := gopass.GetPasswd()
		if err != nil {
			return err
		}
		sendToken = string(token)
	}
	if sendToken == "" {
		sendToken = viper.GetString("service.accessToken")
	}

	data, err := eventBody(event)
	if err != nil {
		return err
	}

	conn, err := msf.Dial(sendAddr, sendChannel, sendClientName, sendToken)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Send(event, data); err != nil {
		return err
	}

	// Show whatever the host sends back before the wait runs out.
	conn.SetReadDeadline(time.Now().Add(sendWait))
	for {
		env, err := conn.Next()
		if err != nil {
			break
		}
		if len(env.Data) > 0 {
			fmt.Fprintf(os.Stdout, "%s: %s\n", env.Event, env.Data)
		} else {
			fmt.Fprintln(os.Stdout, env.Event)
		}
	}
	return nil
}

// eventBody builds the payload for the built-in protocol events.
func eventBody(event string) (interface{}, error) {
	switch event {
	case "play":
		if sendVideoID == 0 {
			return nil, errors.New("play requires --video")
		}
		return map[string]interface{}{"videoId": sendVideoID, "position": sendPosition}, nil
	case "seek":
		return map[string]interface{}{"position": sendPosition}, nil
	case "volume":
		if sendVolume == "" {
			return nil, errors.New("volume requires --volume")
		}
		return map[string]interface{}{"value": sendVolume}, nil
	case "keydown":
		if sendKey == "" {
			return nil, errors.New("keydown requires --key")
		}
		if code, err := strconv.Atoi(sendKey); err == nil {
			return map[string]interface{}{"keycode": code}, nil
		}
		return map[string]interface{}{"keycode": sendKey}, nil
	case "reclaim":
		return nil, nil
	default:
		if sendData == "" {
			return nil, nil
		}
		if !json.Valid([]byte(sendData)) {
			return nil, errors.New("--data must be valid JSON")
		}
		return json.RawMessage(sendData), nil
	}
}
