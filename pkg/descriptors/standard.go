// This file implements the standard descriptors as defined in the USB 2.0 spec, section 9.6.
package descriptors

import (
	"encoding/binary"
	"unicode/utf16"
)

// DeviceDescriptor as defined in USB 2.0, 9.6.1
type DeviceDescriptor struct {
	USB               BinaryCodedDecimal
	DeviceClass       ClassCode
	DeviceSubClass    SubclassCode
	DeviceProtocol    ProtocolCode
	MaxPacketSize0    uint8
	VendorID          uint16
	ProductID         uint16
	Device            BinaryCodedDecimal
	ManufacturerIndex uint8
	ProductIndex      uint8
	SerialNumberIndex uint8
	NumConfigurations uint8
}

func (dd *DeviceDescriptor) Length() uint8                  { return 0x12 }
func (dd *DeviceDescriptor) DescriptorType() DescriptorType { return DescriptorTypeDevice }

func (dd *DeviceDescriptor) MarshalBinary() ([]byte, error) {
	buf := header(dd)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(dd.USB))
	buf = append(buf, byte(dd.DeviceClass), byte(dd.DeviceSubClass), byte(dd.DeviceProtocol), dd.MaxPacketSize0)
	buf = binary.LittleEndian.AppendUint16(buf, dd.VendorID)
	buf = binary.LittleEndian.AppendUint16(buf, dd.ProductID)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(dd.Device))
	buf = append(buf, dd.ManufacturerIndex, dd.ProductIndex, dd.SerialNumberIndex, dd.NumConfigurations)
	return buf, nil
}

// ConfigurationDescriptor as defined in USB 2.0, 9.6.3
type ConfigurationDescriptor struct {
	TotalLength        uint16
	NumInterfaces      uint8
	ConfigurationValue uint8
	ConfigurationIndex uint8
	Attributes         uint8
	MaxPower           uint8 // in 2mA units
}

func (cd *ConfigurationDescriptor) Length() uint8                  { return 0x09 }
func (cd *ConfigurationDescriptor) DescriptorType() DescriptorType { return DescriptorTypeConfiguration }

func (cd *ConfigurationDescriptor) MarshalBinary() ([]byte, error) {
	buf := header(cd)
	buf = binary.LittleEndian.AppendUint16(buf, cd.TotalLength)
	buf = append(buf, cd.NumInterfaces, cd.ConfigurationValue, cd.ConfigurationIndex, cd.Attributes, cd.MaxPower)
	return buf, nil
}

// InterfaceDescriptor as defined in USB 2.0, 9.6.5
type InterfaceDescriptor struct {
	InterfaceNumber   uint8
	AlternateSetting  uint8
	NumEndpoints      uint8
	InterfaceClass    ClassCode
	InterfaceSubClass SubclassCode
	InterfaceProtocol ProtocolCode
	InterfaceIndex    uint8
}

func (id *InterfaceDescriptor) Length() uint8                  { return 0x09 }
func (id *InterfaceDescriptor) DescriptorType() DescriptorType { return DescriptorTypeInterface }

func (id *InterfaceDescriptor) MarshalBinary() ([]byte, error) {
	buf := header(id)
	buf = append(buf,
		id.InterfaceNumber,
		id.AlternateSetting,
		id.NumEndpoints,
		byte(id.InterfaceClass),
		byte(id.InterfaceSubClass),
		byte(id.InterfaceProtocol),
		id.InterfaceIndex)
	return buf, nil
}

// EndpointDescriptor as defined in USB 2.0, 9.6.6
type EndpointDescriptor struct {
	EndpointAddress uint8
	Attributes      uint8
	MaxPacketSize   uint16
	Interval        uint8
}

func (ed *EndpointDescriptor) Length() uint8                  { return 0x07 }
func (ed *EndpointDescriptor) DescriptorType() DescriptorType { return DescriptorTypeEndpoint }

func (ed *EndpointDescriptor) MarshalBinary() ([]byte, error) {
	buf := header(ed)
	buf = append(buf, ed.EndpointAddress, ed.Attributes)
	buf = binary.LittleEndian.AppendUint16(buf, ed.MaxPacketSize)
	buf = append(buf, ed.Interval)
	return buf, nil
}

// LanguageIDEnglishUS is the only LANGID the string table advertises.
const LanguageIDEnglishUS uint16 = 0x0409

// StringDescriptor as defined in USB 2.0, 9.6.7. Index zero carries the
// supported language ids instead of text.
type StringDescriptor struct {
	LanguageIDs []uint16
	Text        string
}

func (sd *StringDescriptor) body() []byte {
	var buf []byte
	if sd.LanguageIDs != nil {
		for _, id := range sd.LanguageIDs {
			buf = binary.LittleEndian.AppendUint16(buf, id)
		}
		return buf
	}
	for _, u := range utf16.Encode([]rune(sd.Text)) {
		buf = binary.LittleEndian.AppendUint16(buf, u)
	}
	return buf
}

func (sd *StringDescriptor) Length() uint8 {
	n := 2 + len(sd.body())
	if n > 0xFF {
		return 0xFF
	}
	return uint8(n)
}

func (sd *StringDescriptor) DescriptorType() DescriptorType { return DescriptorTypeString }

func (sd *StringDescriptor) MarshalBinary() ([]byte, error) {
	body := sd.body()
	buf := make([]byte, 2, 2+len(body))
	buf[0] = byte(2 + len(body))
	buf[1] = byte(DescriptorTypeString)
	return append(buf, body...), nil
}
