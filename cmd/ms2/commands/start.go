// Copyright © 2024 the ms2 authors
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package commands

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tvkit/ms2/pkg/ms2"
	"github.com/tvkit/ms2/pkg/msf"
	"github.com/tvkit/ms2/pkg/platform"
)

var log *logrus.Logger

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Host a second-screen channel with a simulated device",
	Run:   runStart,
}

func init() {
	RootCmd.AddCommand(startCmd)

	startCmd.Flags().StringP("bind", "b", "127.0.0.1:8001", "Bind the channel service to host:port. Leave host empty to bind to all interfaces.")
	viper.BindPFlag("service.bind", startCmd.Flags().Lookup("bind"))
	startCmd.Flags().StringP("channel", "c", "tvapp", "Name of the channel to host")
	viper.BindPFlag("session.channel", startCmd.Flags().Lookup("channel"))
	startCmd.Flags().IntP("max-clients", "m", 4, "Number of remote clients allowed on the channel (-1 admits everyone)")
	viper.BindPFlag("session.maxClients", startCmd.Flags().Lookup("max-clients"))
	startCmd.Flags().StringP("name", "n", ms2.DefaultName, "Name the host announces to remote clients")
	viper.BindPFlag("session.name", startCmd.Flags().Lookup("name"))

	viper.SetDefault("service.accessToken", "")
}

func runStart(cmd *cobra.Command, args []string) {
	log = logrus.New()
	log.Out = os.Stderr
	log.Formatter = new(logrus.TextFormatter)
	log.Level = logrus.DebugLevel

	svc := msf.NewWSService(log)
	svc.AccessToken = viper.GetString("service.accessToken")

	device := platform.NewSimDevice()
	session := ms2.New(log, msf.LocalResolver{Service: svc}, device)
	session.Notifier = ms2.NotifierFunc(func(n ms2.Notification) {
		log.WithFields(logrus.Fields{
			"notification": n.Name(),
		}).Infof("%+v", n)
	})
	session.OnClientConnect(func(c msf.Client) (ms2.VideoID, bool) {
		log.WithField("client", c.ID).Info("Client admitted")
		return session.CurrentVideo(), session.CurrentVideo() != 0
	})
	session.OnClientDisconnect(func(c msf.Client) {
		log.WithField("client", c.ID).Info("Client left")
	})

	props := map[string]interface{}{"name": viper.GetString("session.name")}
	maxClients := viper.GetInt("session.maxClients")
	err := session.Open(viper.GetString("session.channel"), func() {
		if err := session.Connect(props, maxClients); err != nil {
			log.WithField("error", err).Fatal("Cannot connect to channel")
		}
	})
	if err != nil {
		log.Fatal(err)
	}
	defer session.Close()

	log.Info("Starting channel service")
	log.Fatal(svc.ListenAndServe(viper.GetString("service.bind")))
}
