package logger

import (
	"io"
	"log"
	"os"
)

// Log is usable before Init; it discards output until a sink is configured.
var Log = log.New(io.Discard, "", log.LstdFlags)

func Init(logFilePath string) error {
	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}

	Log = log.New(file, "", log.LstdFlags)
	Log.Println("Logger initialized.")
	return nil
}

// Tee keeps the file sink and mirrors every line to w.
func Tee(logFilePath string, w io.Writer) error {
	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	Log = log.New(io.MultiWriter(file, w), "", log.LstdFlags)
	return nil
}
