package plant_test

import (
	"fmt"
	"time"

	"github.com/san-kum/revkit/internal/plant"
)

func ExampleDCMotor() {
	m := plant.NewDCMotor()
	m.SetCommand(120)
	for i := 0; i < 100; i++ {
		m.Advance(20 * time.Millisecond)
	}
	fmt.Println(m.RPM() > 0)
	// Output: true
}
