package compose

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario describes one benchmark match: the engine service that runs the
// evaluation (fronted by resultgate) and the agent under test. It replaces
// the old practice of string-patching a compose file at container start.
type Scenario struct {
	Network string      `yaml:"network"`
	Engine  EngineSpec  `yaml:"engine"`
	Agent   ServiceSpec `yaml:"agent"`
}

type ServiceSpec struct {
	Name        string            `yaml:"name"`
	Image       string            `yaml:"image"`
	Command     []string          `yaml:"command"`
	Environment map[string]string `yaml:"environment"`
	Volumes     []string          `yaml:"volumes"`
}

type EngineSpec struct {
	ServiceSpec `yaml:",inline"`
	Port        int             `yaml:"port"`
	Healthcheck HealthcheckSpec `yaml:"healthcheck"`
}

type HealthcheckSpec struct {
	Interval    string `yaml:"interval"`
	Timeout     string `yaml:"timeout"`
	Retries     int    `yaml:"retries"`
	StartPeriod string `yaml:"startPeriod"`
}

// File is the rendered docker-compose document.
type File struct {
	Services map[string]Service `yaml:"services"`
	Networks map[string]Network `yaml:"networks"`
}

type Service struct {
	Image       string             `yaml:"image,omitempty"`
	Command     []string           `yaml:"command,omitempty"`
	Environment map[string]string  `yaml:"environment,omitempty"`
	Ports       []string           `yaml:"ports,omitempty"`
	Volumes     []string           `yaml:"volumes,omitempty"`
	Healthcheck *Healthcheck       `yaml:"healthcheck,omitempty"`
	DependsOn   map[string]Depends `yaml:"depends_on,omitempty"`
	Networks    []string           `yaml:"networks,omitempty"`
}

type Healthcheck struct {
	Test        []string `yaml:"test"`
	Interval    string   `yaml:"interval"`
	Timeout     string   `yaml:"timeout"`
	Retries     int      `yaml:"retries"`
	StartPeriod string   `yaml:"start_period"`
}

type Depends struct {
	Condition string `yaml:"condition"`
}

type Network struct {
	Driver string `yaml:"driver"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	s.applyDefaults()
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) applyDefaults() {
	if s.Network == "" {
		s.Network = "agent-network"
	}
	if s.Engine.Name == "" {
		s.Engine.Name = "engine"
	}
	if s.Engine.Port == 0 {
		s.Engine.Port = 9009
	}
	if s.Agent.Name == "" {
		s.Agent.Name = "agent"
	}
	hc := &s.Engine.Healthcheck
	if hc.Interval == "" {
		hc.Interval = "5s"
	}
	if hc.Timeout == "" {
		hc.Timeout = "5s"
	}
	if hc.Retries <= 0 {
		hc.Retries = 20
	}
	if hc.StartPeriod == "" {
		hc.StartPeriod = "5s"
	}
}

func (s *Scenario) validate() error {
	var errs []string
	if strings.TrimSpace(s.Engine.Image) == "" {
		errs = append(errs, "engine.image is required")
	}
	if strings.TrimSpace(s.Agent.Image) == "" {
		errs = append(errs, "agent.image is required")
	}
	if s.Engine.Name == s.Agent.Name {
		errs = append(errs, "engine and agent service names must differ")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid scenario: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Render builds the compose document. The agent waits on the engine's
// /status probe before starting, the same contract the adapter serves.
func Render(s *Scenario) *File {
	engine := Service{
		Image:       s.Engine.Image,
		Command:     s.Engine.Command,
		Environment: s.Engine.Environment,
		Ports:       []string{fmt.Sprintf("%d:%d", s.Engine.Port, s.Engine.Port)},
		Volumes:     s.Engine.Volumes,
		Healthcheck: &Healthcheck{
			Test:        []string{"CMD", "curl", "-f", fmt.Sprintf("http://localhost:%d/status", s.Engine.Port)},
			Interval:    s.Engine.Healthcheck.Interval,
			Timeout:     s.Engine.Healthcheck.Timeout,
			Retries:     s.Engine.Healthcheck.Retries,
			StartPeriod: s.Engine.Healthcheck.StartPeriod,
		},
		Networks: []string{s.Network},
	}

	agentEnv := map[string]string{}
	for k, v := range s.Agent.Environment {
		agentEnv[k] = v
	}
	if _, ok := agentEnv["SERVER_URL"]; !ok {
		agentEnv["SERVER_URL"] = fmt.Sprintf("http://%s:%d", s.Engine.Name, s.Engine.Port)
	}
	agent := Service{
		Image:       s.Agent.Image,
		Command:     s.Agent.Command,
		Environment: agentEnv,
		Volumes:     s.Agent.Volumes,
		DependsOn:   map[string]Depends{s.Engine.Name: {Condition: "service_healthy"}},
		Networks:    []string{s.Network},
	}

	return &File{
		Services: map[string]Service{
			s.Engine.Name: engine,
			s.Agent.Name:  agent,
		},
		Networks: map[string]Network{
			s.Network: {Driver: "bridge"},
		},
	}
}

func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

// Write renders the document to path with 0644 permissions.
func Write(f *File, path string) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
