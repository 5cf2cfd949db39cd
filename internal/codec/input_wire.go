package codec

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	crunch "github.com/superwhiskers/crunch/v3"
)

// InputPacket — клиентский ввод. AckFrame — единственный механизм
// подтверждения снапшотов: сервер двигает курсор клиента только вперёд.
type InputPacket struct {
	PlayerIndex uint8
	Sequence    uint32 // монотонно растёт, устаревшие копии отбрасываются
	AckFrame    uint32 // 24-битный номер последнего применённого кадра
	Position    mgl32.Vec3
	Orientation mgl32.Vec3
}

// EncodeInput сериализует input-пакет вместе с типовым байтом
func EncodeInput(p *InputPacket) []byte {
	b := crunch.NewBuffer()
	growWriteByte(b, PacketPlayerInput)
	growWriteByte(b, p.PlayerIndex)
	growWriteU32(b, p.Sequence)
	growWriteU24(b, p.AckFrame)
	for _, v := range []float32{p.Position.X(), p.Position.Y(), p.Position.Z()} {
		growWriteF32(b, v)
	}
	for _, v := range []float32{p.Orientation.X(), p.Orientation.Y(), p.Orientation.Z()} {
		growWriteF32(b, v)
	}
	return b.Bytes()
}

// DecodeInput разбирает input-пакет; data начинается с типового байта
func DecodeInput(data []byte) (*InputPacket, error) {
	if len(data) > MaxInputSize {
		return nil, fmt.Errorf("input-пакет длиннее %d байт", MaxInputSize)
	}

	b := crunch.NewBuffer(data)

	t, err := readByte(b)
	if err != nil {
		return nil, err
	}
	if t != PacketPlayerInput {
		return nil, fmt.Errorf("неожиданный тип пакета %d", t)
	}

	p := &InputPacket{}
	if p.PlayerIndex, err = readByte(b); err != nil {
		return nil, err
	}
	if p.Sequence, err = readU32(b); err != nil {
		return nil, err
	}
	if p.AckFrame, err = readU24(b); err != nil {
		return nil, err
	}
	for i := 0; i < 3; i++ {
		if p.Position[i], err = readF32(b); err != nil {
			return nil, err
		}
	}
	for i := 0; i < 3; i++ {
		if p.Orientation[i], err = readF32(b); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// EncodeUDPHere возвращает однобайтовый зонд UDP-HERE
func EncodeUDPHere() []byte {
	return []byte{PacketUDPHere}
}

// EncodeTCPAck возвращает подтверждение init-пакета для надёжного канала
func EncodeTCPAck(playerIndex uint8) []byte {
	return []byte{PacketTCPAck, playerIndex}
}

// DecodeTCPAck разбирает подтверждение init-пакета
func DecodeTCPAck(data []byte) (uint8, error) {
	if len(data) != 2 || data[0] != PacketTCPAck {
		return 0, fmt.Errorf("некорректный TCP ACK (%d байт)", len(data))
	}
	return data[1], nil
}
