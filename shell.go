package main

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Shell is the interactive front end: it parses textual commands, routes
// them to engine operations, and translates the engine's tagged errors into
// the legacy integer statuses that pick the message to print.
type Shell struct {
	fs        *TFS
	diskName  string
	diskSize  int
	blockSize int
	in        *bufio.Scanner
	out       io.Writer
}

var pathRe = regexp.MustCompile(`^(/[^/\s]+)+$`)

func NewShell(fs *TFS, diskName string, diskSize int, blockSize int, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		fs:        fs,
		diskName:  diskName,
		diskSize:  diskSize,
		blockSize: blockSize,
		in:        bufio.NewScanner(in),
		out:       out,
	}
}

var helpText = strings.Join([]string{
	"help - |Display the list of available commands.",
	"mkfs - |Create a new TFS file system on disk.",
	"mount - |Mount the TFS file system.",
	"sync - |Write file system metadata in memory to disk.",
	"prrfs - |Print the PCB and FAT as stored on disk.",
	"prmfs - |Print the PCB and FAT in memory.",
	"umount - |Unmount the file system.",
	"exit - |Unmount and end the session.",
	"mkdir /fullPath/directoryName - |Create a new directory.",
	"rmdir /fullPath/directoryName - |Remove an empty directory.",
	"ls /fullPath/directoryName - |List the contents of a directory.",
	"create /fullPath/fileName - |Create an empty file.",
	"rm /fullPath/fileName - |Remove a file.",
	"print /fullPath/fileName position number - |Print number characters from position.",
	"append /fullPath/fileName - |Adds an entered string of characters to the end of the file.",
	"cp /fullPath/source /fullPath/destination - |Copy a file.",
	"rename /fullPath/fileName newName - |Rename a file.",
}, "\n")

// Run reads and executes commands until exit or end of input.
func (s *Shell) Run() {
	fmt.Fprintln(s.out, "TFS file system shell. Enter \"help\" for the list of commands.")
	for {
		fmt.Fprint(s.out, "> ")
		if !s.in.Scan() {
			s.fs.Exit()
			return
		}
		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}
		if !s.execute(line) {
			return
		}
	}
}

// execute runs one command line; the return value is false once the session
// should end.
func (s *Shell) execute(line string) bool {
	switch line {
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "mkfs":
		if err := s.fs.Mkfs(s.diskName, s.diskSize, s.blockSize); err != nil {
			fmt.Fprintf(s.out, "Error. Could not create file system: %v\n", err)
		} else {
			fmt.Fprintln(s.out, "File system created.")
		}
	case "mount":
		if err := s.fs.Mount(s.diskName, s.diskSize, s.blockSize); err != nil {
			fmt.Fprintf(s.out, "Error. Could not mount file system: %v\n", err)
		} else {
			fmt.Fprintln(s.out, "File system mounted.")
		}
	case "sync":
		if err := s.fs.Sync(); err != nil {
			fmt.Fprintf(s.out, "Error. Sync failed: %v\n", err)
		} else {
			fmt.Fprintln(s.out, "File system synchronized.")
		}
	case "prrfs":
		state, err := s.fs.DiskState()
		if err != nil {
			fmt.Fprintf(s.out, "Error. Could not read file system: %v\n", err)
		} else {
			fmt.Fprintln(s.out, state)
		}
	case "prmfs":
		state, err := s.fs.MemoryState()
		if err != nil {
			fmt.Fprintln(s.out, "TFS file system not mounted")
		} else {
			fmt.Fprintln(s.out, state)
		}
	case "umount":
		if err := s.fs.Unmount(); err != nil {
			fmt.Fprintf(s.out, "Error. Could not unmount: %v\n", err)
		} else {
			fmt.Fprintln(s.out, "File system unmounted.")
		}
	case "exit":
		if err := s.fs.Exit(); err != nil {
			log.Errorf("exit: %v", err)
		}
		return false
	default:
		s.fileAndDirCommand(line)
	}
	return true
}

// fileAndDirCommand handles every path-taking command.
func (s *Shell) fileAndDirCommand(line string) {
	fields := strings.Fields(line)
	verb := fields[0]
	args := fields[1:]

	switch verb {
	case "mkdir", "rmdir", "ls", "create", "rm", "append":
		if len(args) != 1 || !s.validPathArg(verb, args[0]) {
			s.invalid()
			return
		}
	case "print":
		if len(args) != 3 || !pathRe.MatchString(args[0]) {
			s.invalid()
			return
		}
	case "cp":
		if len(args) != 2 || !pathRe.MatchString(args[0]) || !pathRe.MatchString(args[1]) {
			s.invalid()
			return
		}
	case "rename":
		if len(args) != 2 || !pathRe.MatchString(args[0]) {
			s.invalid()
			return
		}
	default:
		s.invalid()
		return
	}

	switch verb {
	case "mkdir":
		if StatusOf("mkdir", s.fs.Mkdir(args[0])) == 0 {
			fmt.Fprintln(s.out, "Directory created.")
		} else {
			fmt.Fprintln(s.out, "Error. Directory could not be created.")
		}
	case "rmdir":
		switch StatusOf("rmdir", s.fs.Rmdir(args[0])) {
		case 0:
			fmt.Fprintln(s.out, "Directory removed.")
		case -2:
			fmt.Fprintln(s.out, "Error. Directory not empty.")
		default:
			fmt.Fprintln(s.out, "Error. Directory could not be removed.")
		}
	case "ls":
		listing, err := s.fs.Ls(args[0])
		if err != nil {
			fmt.Fprintf(s.out, "Error. Could not list directory: %v\n", err)
		} else {
			fmt.Fprintln(s.out, listing)
		}
	case "create":
		_, err := s.fs.Create(args[0], 0)
		switch StatusOf("create", err) {
		case 0:
			fmt.Fprintln(s.out, "File created.")
		case -2:
			fmt.Fprintln(s.out, "Error. File already exists.")
		default:
			fmt.Fprintln(s.out, "Error. File could not be created.")
		}
	case "rm":
		switch StatusOf("rm", s.fs.Rm(args[0])) {
		case 0:
			fmt.Fprintln(s.out, "File removed.")
		case -2:
			fmt.Fprintln(s.out, "Error. File not found.")
		default:
			fmt.Fprintln(s.out, "Error. File could not be removed.")
		}
	case "print":
		pos, err1 := strconv.Atoi(args[1])
		n, err2 := strconv.Atoi(args[2])
		if err1 != nil || err2 != nil {
			s.invalid()
			return
		}
		text, err := s.fs.Print(args[0], pos, n)
		if err != nil {
			fmt.Fprintf(s.out, "Error. Could not read file: %v\n", err)
		} else {
			fmt.Fprintln(s.out, text)
		}
	case "append":
		data := s.readAppendInput()
		switch StatusOf("append", s.fs.Append(args[0], data)) {
		case 0:
			fmt.Fprintln(s.out, "Data appended to file.")
		case -2:
			fmt.Fprintln(s.out, "Error. File not found.")
		default:
			fmt.Fprintln(s.out, "Error. Could not append to file.")
		}
	case "cp":
		switch StatusOf("cp", s.fs.Cp(args[0], args[1])) {
		case 0:
			fmt.Fprintln(s.out, "File copied.")
		case -2:
			fmt.Fprintln(s.out, "Error. Source file not found.")
		case -3:
			fmt.Fprintln(s.out, "Error. Destination file already exists.")
		default:
			fmt.Fprintln(s.out, "Error. File could not be copied.")
		}
	case "rename":
		switch StatusOf("rename", s.fs.Rename(args[0], args[1])) {
		case 0:
			fmt.Fprintln(s.out, "File renamed.")
		case -2:
			fmt.Fprintln(s.out, "Error. A file with that name already exists.")
		default:
			fmt.Fprintln(s.out, "Error. File could not be renamed.")
		}
	}
}

// validPathArg checks a single path argument; ls additionally accepts the
// bare root.
func (s *Shell) validPathArg(verb string, path string) bool {
	if verb == "ls" && path == "/" {
		return true
	}
	return pathRe.MatchString(path)
}

// readAppendInput prompts for lines until an empty reply and joins them with
// newlines, each line terminated the way it was entered.
func (s *Shell) readAppendInput() []byte {
	fmt.Fprintln(s.out, "Enter a string of characters to append to the end of the file:")
	var sb strings.Builder
	for s.in.Scan() {
		line := s.in.Text()
		if line == "" {
			break
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

func (s *Shell) invalid() {
	fmt.Fprintln(s.out, "Invalid command. Enter \"help\" for the list of available commands.")
}
