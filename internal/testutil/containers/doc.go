// Package containers starts Docker dependencies for integration tests with
// testcontainers-go:
//
//   - MySQL 8.0, for the GORM repositories
//   - Eclipse Mosquitto, for the MQTT notification channel
//   - ntfy, for shoutrrr delivery
//
// Containers are usually owned by TestMain:
//
//	func TestMain(m *testing.M) {
//	    ctr, err := containers.NewMySQLContainer(context.Background(), nil)
//	    if err != nil {
//	        panic(err)
//	    }
//	    code := m.Run()
//	    _ = ctr.Terminate(context.Background())
//	    os.Exit(code)
//	}
//
// Every file in this package, and every test using it, carries the
// "integration" build tag:
//
//	go test -tags=integration ./...
package containers
