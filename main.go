package main

import (
	"flag"
	"os"

	log "github.com/sirupsen/logrus"
)

func init() {
	stdFormatter := &log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000",
		ForceColors:     true,
		DisableColors:   false,
	}
	log.SetFormatter(stdFormatter)
	log.SetLevel(log.WarnLevel)
}

func main() {
	disk := flag.String("disk", "TFSDiskFile", "container file backing the emulated disk")
	size := flag.Int("size", 65535, "container size in bytes")
	bsize := flag.Int("bsize", 128, "block size in bytes")
	debug := flag.Bool("debug", false, "print debug data")
	flag.Parse()
	if *debug {
		log.SetLevel(log.DebugLevel)
		log.Warn("Debug mode enabled")
	}
	if *bsize <= 0 || *size < *bsize {
		log.Fatal("container size must hold at least one block")
	}

	fs := NewTFS()
	shell := NewShell(fs, *disk, *size, *bsize, os.Stdin, os.Stdout)
	shell.Run()
}
