// Package pipeline is the composition root of the kinematics model.
//
// A Pipeline validates configuration and resolves the orientation
// estimator once. Calibrate turns the static, walking and squat
// recordings of one subject into an immutable Session; Session.Process
// then runs any number of task recordings through orientation
// estimation (L2), optional 6D heading correction (L2), joint angles
// (L4), offset removal and alignment (L5).
//
// Structural failures surface as *Error with a Kind and the Stage that
// failed; numerical fallbacks are reported in Result and logged on the
// ops stream.
package pipeline
