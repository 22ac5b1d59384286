package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"miko/internal/character"
)

type Config struct {
	Server struct {
		Mode string `yaml:"mode"`
		IP   string `yaml:"ip"`
		Port string `yaml:"port"`
	} `yaml:"server"`
	Speech        SpeechConfig           `yaml:"speech"`
	LLM           LLMConfig              `yaml:"llm"`
	Characters    []*character.Character `yaml:"characters"`
	DefaultLayout string                 `yaml:"default_layout"`
	// Layouts 各布局的出场角色id，单头像1个，双头像2个（外星角色在前）
	Layouts map[string]LayoutConfig `yaml:"layouts"`
	CMDExit []string                `yaml:"cmd_exit"`
}

// SpeechConfig Azure语音服务凭据，识别与合成共用
type SpeechConfig struct {
	APIKey   string `yaml:"api_key"`
	Region   string `yaml:"region"`
	Language string `yaml:"language"`
}

type LLMConfig struct {
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
}

type LayoutConfig struct {
	Characters []string `yaml:"characters"`
}

var (
	config  *Config
	cfgLock sync.RWMutex
	once    sync.Once
)

func NewConfig() *Config {
	once.Do(func() {
		pwd, err := os.Getwd()
		if err != nil {
			panic(err)
		}
		filePath := filepath.Join(pwd, "config", "config.yaml")
		if _, err = os.Stat(filePath); os.IsNotExist(err) {
			panic(fmt.Sprintf("config file not found: %s", filePath))
		}

		config = newConfig(filePath)
	})
	return config
}

// Get 当前生效的配置，热更新后取到新值
func Get() *Config {
	cfgLock.RLock()
	defer cfgLock.RUnlock()
	return config
}

func newConfig(configFilePath string) *Config {
	// 初始加载配置
	if err := loadConfig(configFilePath); err != nil {
		log.Fatalf("初始化配置失败: %v", err)
	}
	printConfig()

	go watchConfig(configFilePath)
	return config
}

func watchConfig(filePath string) {
	// 创建文件监听器
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	// 添加配置文件到监听列表
	if err = watcher.Add(filePath); err != nil {
		log.Fatalf("监听系统配置文件失败: %v", err)
	}

	fmt.Printf("开始监听系统配置文件变更: %s\n", filePath)

	// 处理文件变更事件（带防抖）
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // 立即消耗初始信号

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// 只处理写入和重命名事件
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				debounceTimer.Reset(500 * time.Millisecond) // 500ms防抖
			}
		case <-debounceTimer.C:
			log.Println("检测到系统配置文件变更，重新加载...")
			if err = loadConfig(filePath); err != nil {
				log.Printf("系统配置重载失败: %v", err)
			} else {
				printConfig()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("系统配置监听错误: %v", err)
		}
	}
}

func loadConfig(filename string) error {
	file, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("读取系统配置失败: %w", err)
	}
	var cfg Config
	if err = yaml.Unmarshal(file, &cfg); err != nil {
		return fmt.Errorf("解析系统配置失败: %w", err)
	}

	cfgLock.Lock()
	defer cfgLock.Unlock()
	config = &cfg
	return nil
}

func printConfig() {
	cfgLock.RLock()
	defer cfgLock.RUnlock()

	fmt.Println("当前系统配置:")
	fmt.Printf("• 服务器模式: %s\n", config.Server.Mode)
	fmt.Printf("• 服务器IP: %s\n", config.Server.IP)
	fmt.Printf("• 服务器端口: %s\n", config.Server.Port)
	fmt.Printf("• 语音服务区域: %s\n", config.Speech.Region)
	fmt.Printf("• LLM模型: %s\n", config.LLM.Model)
	fmt.Printf("• 默认布局: %s\n", config.DefaultLayout)
	fmt.Println("• 角色:")
	for _, ch := range config.Characters {
		fmt.Printf("  - %s (%s) 音色: %s\n", ch.ID, ch.Name, ch.Voice)
	}
	fmt.Println("• 布局:")
	for name, layout := range config.Layouts {
		fmt.Printf("  - %s: %v\n", name, layout.Characters)
	}
	fmt.Printf("• 退出指令: %v\n", config.CMDExit)
}
