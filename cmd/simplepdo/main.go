package main

import (
	"fmt"
	"os"

	"github.com/LuisaeDev/SimplePDO/client"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "dsn":
		handleDSN(os.Args[2:])
	case "ping":
		handlePing(os.Args[2:])
	case "query":
		handleQuery(os.Args[2:])
	case "exec":
		handleExec(os.Args[2:])
	case "version", "-v", "--version":
		fmt.Printf("simplepdo %s\n", client.Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		printError(fmt.Sprintf("Unknown command: %s", command))
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(colorBold(colorCyan("SimplePDO CLI")) + " - Connect, query and inspect SQL databases\n")
	fmt.Println("Usage:")
	fmt.Println("  simplepdo " + colorYellow("<command>") + " [options]\n")
	fmt.Println("Commands:")
	fmt.Println("  " + colorGreen("dsn") + "       Print the connection string built from the options")
	fmt.Println("  " + colorGreen("ping") + "      Test the database connection")
	fmt.Println("  " + colorGreen("query") + "     Run a row-returning statement and print the rows")
	fmt.Println("  " + colorGreen("exec") + "      Run a statement and print affected rows and last insert id")
	fmt.Println("  " + colorGreen("version") + "   Show version information")
	fmt.Println("  " + colorGreen("help") + "      Show this help message\n")
	fmt.Println("Run '" + colorCyan("simplepdo <command> --help") + "' for more information on a command.\n")
	fmt.Println("Environment Variables:")
	fmt.Println("  SIMPLEPDO_DSN        Prebuilt connection string (overrides the fields below)")
	fmt.Println("  SIMPLEPDO_DRIVER     Driver: mysql, pgsql or sqlite (default: mysql)")
	fmt.Println("  SIMPLEPDO_HOST       Host (default: 127.0.0.1)")
	fmt.Println("  SIMPLEPDO_PORT       Port (default: 3306)")
	fmt.Println("  SIMPLEPDO_DBNAME     Database name")
	fmt.Println("  SIMPLEPDO_USER       User (default: root)")
	fmt.Println("  SIMPLEPDO_PASSWORD   Password")
	fmt.Println("  SIMPLEPDO_LOG_LEVEL  DEBUG, INFO, WARN or ERROR (default: WARN)")
}
