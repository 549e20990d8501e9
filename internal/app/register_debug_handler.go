// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/goburrow/modbus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/imu_rs485/internal/config"
	"github.com/relabs-tech/imu_rs485/internal/sensors"
)

// holdingReader is the part of a Modbus client the dump needs.
type holdingReader interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
}

// RegisterDump is the YAML document written by the register debug tool.
type RegisterDump struct {
	Port      string          `yaml:"port"`
	Address   string          `yaml:"address"`
	ReadAt    string          `yaml:"read_at"`
	Registers []RegisterValue `yaml:"registers"`
}

// RegisterValue is one register as read from the device.
type RegisterValue struct {
	Address     string `yaml:"address"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Raw         string `yaml:"raw,omitempty"`
	Value       string `yaml:"value,omitempty"`
	Error       string `yaml:"error,omitempty"`
}

// ReadConfigRegisters reads every block in sensors.ConfigBlocks. A failed
// block is recorded per register and does not stop the dump.
func ReadConfigRegisters(r holdingReader, logger *zap.Logger) []RegisterValue {
	var out []RegisterValue
	for _, b := range sensors.ConfigBlocks {
		data, err := r.ReadHoldingRegisters(b.Start, b.Count)
		if err == nil && len(data) != int(b.Count)*2 {
			err = fmt.Errorf("expected %d bytes, got %d", int(b.Count)*2, len(data))
		}
		if err != nil {
			logger.Warn("register_debug: block read failed",
				zap.String("start", fmt.Sprintf("0x%02X", b.Start)),
				zap.Uint16("count", b.Count),
				zap.Error(err),
			)
		}
		for i := uint16(0); i < b.Count; i++ {
			addr := b.Start + i
			info, ok := sensors.LookupRegister(addr)
			if !ok {
				info = sensors.RegisterInfo{Address: addr, Name: "UNKNOWN"}
			}
			rv := RegisterValue{
				Address:     fmt.Sprintf("0x%02X", addr),
				Name:        info.Name,
				Description: info.Description,
			}
			if err != nil {
				rv.Error = err.Error()
			} else {
				v := binary.BigEndian.Uint16(data[2*i:])
				rv.Raw = fmt.Sprintf("0x%04X", v)
				rv.Value = info.Describe(v)
			}
			out = append(out, rv)
		}
	}
	return out
}

// WriteRegisterDump renders d as YAML.
func WriteRegisterDump(w io.Writer, d RegisterDump) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode register dump: %w", err)
	}
	return enc.Close()
}

// defaultRegisters answers reads with the factory defaults. It stands in
// for the device in mock mode.
type defaultRegisters struct{}

func (defaultRegisters) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	out := make([]byte, 0, int(quantity)*2)
	for a := address; a < address+quantity; a++ {
		var v uint64
		if info, ok := sensors.LookupRegister(a); ok && info.Default != "" {
			v, _ = strconv.ParseUint(info.Default, 0, 16)
		}
		out = binary.BigEndian.AppendUint16(out, uint16(v))
	}
	return out, nil
}

// RunRegisterDebug reads the configuration registers once and writes them
// to out as YAML. It opens the port itself, so the producer must not be
// running on the same port.
func RunRegisterDebug(cfg *config.Config, logger *zap.Logger, mock bool, out io.Writer) error {
	var reader holdingReader = defaultRegisters{}
	port := "mock"

	if !mock {
		handler := modbus.NewRTUClientHandler(cfg.IMUSerialPort)
		handler.BaudRate = cfg.IMUBaudRate
		handler.DataBits = 8
		handler.Parity = "N"
		handler.StopBits = 1
		handler.SlaveId = cfg.IMUAddress
		handler.Timeout = 10 * cfg.ResponseTimeout()

		if err := handler.Connect(); err != nil {
			return fmt.Errorf("open %s: %w", cfg.IMUSerialPort, err)
		}
		defer handler.Close()
		reader = modbus.NewClient(handler)
		port = cfg.IMUSerialPort
	}

	dump := RegisterDump{
		Port:      port,
		Address:   hexByte(cfg.IMUAddress),
		ReadAt:    time.Now().Format(time.RFC3339),
		Registers: ReadConfigRegisters(reader, logger),
	}
	return WriteRegisterDump(out, dump)
}
