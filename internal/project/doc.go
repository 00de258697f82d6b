// Package project loads YAML project files describing a clip composition.
//
// A project names clips under "clips" and picks one as the root. Any clip
// operand may be the name of another clip or an inline clip description:
//
//	output: out.mp4
//	clips:
//	  intro: {file: intro.mp4, master: true}
//	  logo:  {image: logo.png, duration: 2}
//	  main:
//	    sequence: [intro, {repeat: logo, count: 2}]
//	root: main
//
// Relative paths resolve against the directory of the project file.
package project
