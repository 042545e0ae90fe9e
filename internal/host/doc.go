// Package host adopts Dynalite bridge entities into Gray Logic.
//
// A Platform is created per bridge. It registers the add-entities callback
// for every category, seeds the device registry, announces each entity on
// the discovery topic and republishes its state whenever the bridge asks
// for a refresh. It also executes commands arriving on
// graylogic/command/dynalite/{bridge}/+ and acknowledges them.
//
// AreaRegistry and DeviceRegistry adapt the SQLite-backed location and
// device packages to the registry interfaces the bridge consumes.
//
// Usage:
//
//	platform, err := host.NewPlatform(host.PlatformOptions{
//	    Bridge:  bridge,
//	    MQTT:    mqttClient,
//	    Devices: deviceRegistry,
//	    Levels:  influxClient,
//	})
//	if err := platform.Start(ctx); err != nil {
//	    return err
//	}
//	defer platform.Stop()
package host
