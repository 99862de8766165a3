// Package config provides configuration loading for the APS observer.
//
// Configuration is loaded once at startup from a YAML file, overridden by
// APS_* environment variables, validated, and treated as immutable for the
// life of the process. Changing the topic registry, template tree, or broker
// settings requires a restart.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err) // configuration errors are fatal at startup
//	}
//
// # Environment Overrides
//
//	APS_MQTT_HOST        mqtt.broker.host
//	APS_MQTT_PORT        mqtt.broker.port
//	APS_MQTT_CLIENT_ID   mqtt.broker.client_id
//	APS_MQTT_USERNAME    mqtt.auth.username
//	APS_MQTT_PASSWORD    mqtt.auth.password
//	APS_SESSIONS_ROOT    sessions.root
//	APS_TEMPLATES_DIR    templates.dir
//	APS_INFLUXDB_TOKEN   influxdb.token
package config
