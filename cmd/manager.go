package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/mwantia/vds"
	"github.com/mwantia/vds/data"
	"github.com/mwantia/vds/log"
)

// CommandManager handles command registration, parsing, and execution
type CommandManager struct {
	mu   sync.RWMutex
	api  API
	cmds map[string]Command
}

func NewCommandManager(api API) *CommandManager {
	return &CommandManager{
		api:  api,
		cmds: make(map[string]Command),
	}
}

// Register registers a command
func (cm *CommandManager) Register(cmd Command) error {
	if cmd == nil {
		return fmt.Errorf("%w: command cannot be nil", data.ErrInvalidArgument)
	}

	name := cmd.Name()
	if name == "" {
		return fmt.Errorf("%w: command name cannot be empty", data.ErrInvalidArgument)
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.cmds[name]; exists {
		return fmt.Errorf("%w: command %s", data.ErrAlreadyExists, name)
	}

	cm.cmds[name] = cmd
	return nil
}

// Get returns a command by name
func (cm *CommandManager) Get(name string) (Command, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	cmd, exists := cm.cmds[name]
	if !exists {
		return nil, fmt.Errorf("%w: unknown command '%s'", data.ErrInvalidArgument, name)
	}

	return cmd, nil
}

// List returns all registered commands sorted by name
func (cm *CommandManager) List() []Command {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	commands := make([]Command, 0, len(cm.cmds))
	for _, cmd := range cm.cmds {
		commands = append(commands, cmd)
	}

	slices.SortFunc(commands, func(a, b Command) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return commands
}

// Execute parses and executes a command. The first argument names the
// command; output goes to writer.
func (cm *CommandManager) Execute(ctx context.Context, writer io.Writer, args ...string) (vds.ExitCode, error) {
	if len(args) == 0 {
		return vds.InvalidArgument, fmt.Errorf("%w: no command specified", data.ErrInvalidArgument)
	}

	cmd, err := cm.Get(args[0])
	if err != nil {
		return vds.Code(err), err
	}

	parsedArgs, err := NewParser(cmd.GetFlags()).Parse(args[1:])
	if err != nil {
		return vds.Code(err), fmt.Errorf("parse error: %w", err)
	}

	return cmd.Execute(ctx, cm.api, parsedArgs, writer)
}

// DatasetAPI opens datasets by address and hands them the configured logger.
type DatasetAPI struct {
	logger *log.Logger
}

func NewDatasetAPI(logger *log.Logger) *DatasetAPI {
	if logger == nil {
		logger = log.Discard()
	}
	return &DatasetAPI{
		logger: logger,
	}
}

func (a *DatasetAPI) Open(ctx context.Context, address string, opts ...vds.Option) (*vds.Dataset, error) {
	return vds.OpenAddress(ctx, address, append([]vds.Option{vds.WithLogger(a.logger)}, opts...)...)
}

func (a *DatasetAPI) Create(ctx context.Context, address string, opts ...vds.Option) (*vds.Dataset, error) {
	return vds.CreateAddress(ctx, address, append([]vds.Option{vds.WithLogger(a.logger)}, opts...)...)
}

func (a *DatasetAPI) Logger() *log.Logger {
	return a.logger
}
