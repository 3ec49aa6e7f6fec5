package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/medwatch/contentprocessor/internal/common"
	"github.com/medwatch/contentprocessor/internal/contentprocessor"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/configuration"
)

const CustomConfigLocation string = "config"

func init() {
	pflag.String(CustomConfigLocation, "", "Fully qualified path to application configuration file")
	pflag.Parse()
}

func main() {
	common.ConfigureLogging()
	common.BindCommandlineArguments()

	var config configuration.ContentProcessorConfiguration
	userSpecifiedConfig := viper.GetString(CustomConfigLocation)
	common.LoadConfig(&config, "./config/contentprocessor", userSpecifiedConfig)

	if err := contentprocessor.Run(config); err != nil {
		log.Errorf("Content processor failed: %v", err)
	}
}
