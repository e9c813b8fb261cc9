package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/LuisaeDev/SimplePDO/client"
)

func handleDSN(args []string) {
	fs := flag.NewFlagSet("dsn", flag.ExitOnError)
	cf := registerConnFlags(fs)
	fs.Parse(args)

	if *cf.dsn != "" {
		dsn, err := client.StripPassword(*cf.dsn)
		if err != nil {
			printError(client.FormatError(err, *cf.debug))
			os.Exit(1)
		}
		fmt.Println(dsn)
		return
	}

	p := cf.connectionData().(client.Params)
	dsn, err := p.DSN()
	if err != nil {
		printError(client.FormatError(err, *cf.debug))
		os.Exit(1)
	}
	fmt.Println(dsn)
}

func handlePing(args []string) {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	cf := registerConnFlags(fs)
	verbose := fs.Bool("verbose", false, "Print connection details")
	fs.Parse(args)

	ctx := context.Background()
	printHeader("Test Database Connection")

	fmt.Print("  1. Connect... ")
	c := cf.connect(ctx)
	defer c.Close()
	printSuccess("OK")

	fmt.Print("  2. Ping... ")
	start := time.Now()
	if err := c.Ping(ctx); err != nil {
		fmt.Println(colorRed("FAIL"))
		printError(client.FormatError(err, *cf.debug))
		os.Exit(1)
	}
	printSuccess(fmt.Sprintf("OK (%dms)", time.Since(start).Milliseconds()))

	if *verbose {
		info := c.ConnectionData()
		fmt.Println()
		fmt.Println(colorDim("  DSN:      " + c.DSN()))
		fmt.Println(colorDim("  Driver:   " + info.Driver))
		fmt.Println(colorDim("  Host:     " + info.Host))
		fmt.Println(colorDim("  Port:     " + info.Port))
		fmt.Println(colorDim("  Database: " + info.DBName))
		fmt.Println(colorDim("  User:     " + info.User))
		if *cf.debug {
			fmt.Println(c.DumpDebugInfoJSON())
		}
	}
}

func handleQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	cf := registerConnFlags(fs)
	var params paramFlags
	fs.Var(&params, "p", "Bound parameter name=value[:type], repeatable")
	timeout := fs.Duration("timeout", 30*time.Second, "Statement timeout")
	fs.Parse(args)

	sql := strings.Join(fs.Args(), " ")
	if sql == "" {
		printError("SQL statement is required")
		fmt.Println("\nUsage: simplepdo query [options] <sql>")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := cf.connect(ctx)
	defer c.Close()

	run(ctx, c, cf, sql, params)

	rows, err := c.FetchAll()
	if err != nil {
		fail(c, cf, err)
	}
	reportSilentError(c)

	if len(rows) == 0 {
		printWarning("No rows")
		return
	}
	var columns []string
	if st := c.Statement(); st != nil {
		columns = st.Columns()
	}
	headers, table := tabulate(columns, rows)
	printTable(headers, table)
	fmt.Println(colorDim(fmt.Sprintf("\n%d row(s)", c.RowCount())))
}

func handleExec(args []string) {
	fs := flag.NewFlagSet("exec", flag.ExitOnError)
	cf := registerConnFlags(fs)
	var params paramFlags
	fs.Var(&params, "p", "Bound parameter name=value[:type], repeatable")
	timeout := fs.Duration("timeout", 30*time.Second, "Statement timeout")
	tx := fs.Bool("tx", false, "Run the statement inside a transaction")
	fs.Parse(args)

	sql := strings.Join(fs.Args(), " ")
	if sql == "" {
		printError("SQL statement is required")
		fmt.Println("\nUsage: simplepdo exec [options] <sql>")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := cf.connect(ctx)
	defer c.Close()

	if *tx {
		if err := c.BeginTransaction(ctx); err != nil {
			fail(c, cf, err)
		}
	}

	run(ctx, c, cf, sql, params)

	if *tx {
		if c.ErrorExists() {
			c.RollBack(ctx)
			printWarning("Transaction rolled back")
		} else if err := c.Commit(ctx); err != nil {
			fail(c, cf, err)
		}
	}
	reportSilentError(c)

	printSuccess(fmt.Sprintf("%d row(s) affected", c.RowCount()))
	if id, ok := c.LastInsertID(); ok {
		fmt.Println(colorDim(fmt.Sprintf("last insert id: %d", id)))
	}
}

func run(ctx context.Context, c *client.Client, cf *connFlags, sql string, params paramFlags) {
	if err := c.Prepare(ctx, sql, params...); err != nil {
		fail(c, cf, err)
	}
	if err := c.Execute(ctx); err != nil {
		fail(c, cf, err)
	}
}

func fail(c *client.Client, cf *connFlags, err error) {
	printError(client.FormatError(err, *cf.debug))
	c.Close()
	os.Exit(1)
}

// reportSilentError prints the recorded error in silent mode.
func reportSilentError(c *client.Client) {
	if !c.ErrorExists() {
		return
	}
	t := c.ErrorInfo().Tuple()
	printWarning(fmt.Sprintf("SQLSTATE[%v] %v: %v", t[0], t[1], t[2]))
}

// tabulate renders rows as strings under columns, in select order. Without
// column names it falls back to the sorted union of the row keys.
func tabulate(columns []string, rows []client.Row) ([]string, [][]string) {
	headers := columns
	if len(headers) == 0 {
		seen := map[string]bool{}
		for _, row := range rows {
			for k := range row {
				seen[k] = true
			}
		}
		for k := range seen {
			headers = append(headers, k)
		}
		sort.Strings(headers)
	}

	table := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(headers))
		for j, h := range headers {
			v, ok := row[h]
			switch {
			case !ok:
				cells[j] = ""
			case v == nil:
				cells[j] = "NULL"
			default:
				cells[j] = fmt.Sprint(v)
			}
		}
		table[i] = cells
	}
	return headers, table
}
